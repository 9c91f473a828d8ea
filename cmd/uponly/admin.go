// cmd/uponly/admin.go
package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/program"
	"github.com/rovshanmuradov/up-only/internal/storage"
	"github.com/rovshanmuradov/up-only/internal/token"
)

func newWalletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage participant keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new NAME...",
		Short: "Generate keys for the given names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				w, created, err := a.keystore.Generate(name)
				if err != nil {
					return err
				}
				status := "exists"
				if created {
					status = "created"
				}
				fmt.Fprintf(a.out, "%-16s %s (%s)\n", name, w.PublicKey, status)
			}
			return a.keystore.Save()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range a.keystore.Names() {
				w, _ := a.keystore.Get(name)
				fmt.Fprintf(a.out, "%-16s %s\n", name, w.PublicKey)
			}
			return nil
		},
	})
	return cmd
}

// newDeployCmd creates the two mints a deployment settles in. The sale mint
// authority is the deployer until init hands it to the program.
func newDeployCmd(a *app) *cobra.Command {
	var deployer, faucet string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create the program identity and the sale and payment mints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deployerKey, err := a.keystore.Resolve(deployer)
			if err != nil {
				return err
			}
			faucetKey, err := a.keystore.Resolve(faucet)
			if err != nil {
				return err
			}

			for _, k := range []struct{ configured, name string }{
				{a.cfg.ProgramID, programWallet},
				{a.cfg.SaleMint, saleMintWallet},
				{a.cfg.PaymentMint, paymentMintWallet},
			} {
				if k.configured != "" {
					continue
				}
				if _, _, err := a.keystore.Generate(k.name); err != nil {
					return err
				}
			}
			if err := a.keystore.Save(); err != nil {
				return err
			}

			ec, err := a.deployment()
			if err != nil {
				return err
			}

			err = a.store.Update(ctx, func(tx storage.Tx) error {
				if err := token.CreateMint(ctx, tx, ec.SaleMint, ledger.SaleDecimals, deployerKey); err != nil {
					return fmt.Errorf("sale mint: %w", err)
				}
				if err := token.CreateMint(ctx, tx, ec.PaymentMint, ledger.PaymentDecimals, faucetKey); err != nil {
					return fmt.Errorf("payment mint: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}

			a.logger.Info("Deployment created",
				zap.Stringer("program", ec.Program),
				zap.Stringer("sale_mint", ec.SaleMint),
				zap.Stringer("payment_mint", ec.PaymentMint))
			fmt.Fprintf(a.out, "program_id: %s\nsale_mint: %s\npayment_mint: %s\n", ec.Program, ec.SaleMint, ec.PaymentMint)
			return nil
		},
	}

	cmd.Flags().StringVar(&deployer, "deployer", "deployer", "sale mint authority before init")
	cmd.Flags().StringVar(&faucet, "faucet", "faucet", "payment mint authority")
	return cmd
}

func newFaucetCmd(a *app) *cobra.Command {
	var authority string

	cmd := &cobra.Command{
		Use:   "faucet WALLET AMOUNT",
		Short: "Mint payment tokens to a wallet (local deployments)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			auth, err := a.keystore.Get(authority)
			if err != nil {
				return err
			}
			to, err := a.keystore.Resolve(args[0])
			if err != nil {
				return err
			}
			amount, err := ledger.ParseUnits(args[1], ledger.PaymentDecimals)
			if err != nil {
				return err
			}
			ec, err := a.deployment()
			if err != nil {
				return err
			}

			err = a.store.Update(ctx, func(tx storage.Tx) error {
				return token.MintTo(ctx, tx, ec.PaymentMint, to, auth.PublicKey, amount)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "minted %s to %s\n", ledger.FormatPayment(amount), to)
			return nil
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "faucet", "payment mint authority wallet")
	return cmd
}

func newInitCmd(a *app) *cobra.Command {
	var deployer, team string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the sale: seed the reserve and hand the mint to the program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			teamKey, err := a.keystore.Resolve(team)
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), deployer, func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.Initialize(key, teamKey)
			})
			return err
		},
	}
	cmd.Flags().StringVar(&deployer, "deployer", "deployer", "deployer wallet")
	cmd.Flags().StringVar(&team, "team", "team", "protocol fee recipient (wallet or key)")
	return cmd
}

func newTeamCmd(a *app) *cobra.Command {
	var deployer string

	cmd := &cobra.Command{
		Use:   "team RECIPIENT",
		Short: "Change the protocol fee recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamKey, err := a.keystore.Resolve(args[0])
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), deployer, func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.SetTeam(key, teamKey)
			})
			return err
		},
	}
	cmd.Flags().StringVar(&deployer, "deployer", "deployer", "deployer wallet")
	return cmd
}

func newFounderCmd(a *app) *cobra.Command {
	var deployer string

	cmd := &cobra.Command{
		Use:   "founder",
		Short: "Founders pool operations",
	}
	cmd.PersistentFlags().StringVar(&deployer, "deployer", "deployer", "deployer wallet")

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Open the founders pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.submit(cmd.Context(), deployer, func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.InitializeFoundersPool(key)
			})
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add FOUNDER",
		Short: "Register a founder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			founder, err := a.keystore.Resolve(args[0])
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), deployer, func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.AddFounder(key, founder)
			})
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "claim FOUNDER",
		Short: "Withdraw the founder's accrued share",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.submit(cmd.Context(), args[0], func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.ClaimFounderShare(key)
			})
			return err
		},
	})
	return cmd
}
