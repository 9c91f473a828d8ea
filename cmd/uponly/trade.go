// cmd/uponly/trade.go
package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/up-only/internal/ledger"
	"github.com/rovshanmuradov/up-only/internal/program"
)

func newPassCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Access pass operations",
	}

	var referral string
	buy := &cobra.Command{
		Use:   "buy WALLET",
		Short: "Buy an access pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := a.optionalKey(referral)
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), args[0], func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.BuyPass(key, ref)
			})
			return err
		},
	}
	buy.Flags().StringVarP(&referral, "referral", "r", "", "referral wallet or key")

	var deployer string
	give := &cobra.Command{
		Use:   "give TARGET",
		Short: "Grant a pass for free (deployer only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.keystore.Resolve(args[0])
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), deployer, func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.GivePass(key, target)
			})
			return err
		},
	}
	give.Flags().StringVar(&deployer, "deployer", "deployer", "deployer wallet")

	cmd.AddCommand(buy, give)
	return cmd
}

func newBuyCmd(a *app) *cobra.Command {
	var referral string

	cmd := &cobra.Command{
		Use:   "buy WALLET AMOUNT",
		Short: "Buy sale tokens for AMOUNT payment tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := ledger.ParseUnits(args[1], ledger.PaymentDecimals)
			if err != nil {
				return err
			}
			ref, err := a.optionalKey(referral)
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), args[0], func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.BuyToken(key, amount, ref)
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&referral, "referral", "r", "", "referral wallet or key (default: the one stored with the pass)")
	return cmd
}

func newSellCmd(a *app) *cobra.Command {
	var referral string

	cmd := &cobra.Command{
		Use:   "sell WALLET UNITS",
		Short: "Sell UNITS sale tokens back to the reserve",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := ledger.ParseUnits(args[1], ledger.SaleDecimals)
			if err != nil {
				return err
			}
			ref, err := a.optionalKey(referral)
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), args[0], func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.SellToken(key, units, ref)
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&referral, "referral", "r", "", "referral wallet or key (default: the one stored with the pass)")
	return cmd
}

func newQuoteCmd(a *app) *cobra.Command {
	var withReferral bool

	cmd := &cobra.Command{
		Use:       "quote buy|sell AMOUNT",
		Short:     "Preview a trade against the current curve",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"buy", "sell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch args[0] {
			case "buy":
				amount, err := ledger.ParseUnits(args[1], ledger.PaymentDecimals)
				if err != nil {
					return err
				}
				split, q, err := eng.QuoteBuy(ctx, amount, withReferral)
				if err != nil {
					return err
				}
				renderSplit(a.out, split)
				fmt.Fprintf(a.out, "%s %s\n", labelStyle.Render("receive"), ledger.FormatSale(q.Minted))
			case "sell":
				units, err := ledger.ParseUnits(args[1], ledger.SaleDecimals)
				if err != nil {
					return err
				}
				split, _, err := eng.QuoteSell(ctx, units, withReferral)
				if err != nil {
					return err
				}
				renderSplit(a.out, split)
				fmt.Fprintf(a.out, "%s %s\n", labelStyle.Render("receive"), ledger.FormatPayment(split.Net))
			default:
				return fmt.Errorf("unknown side %q", args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&withReferral, "referral", "r", false, "quote with a referral leg")
	return cmd
}

func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Vesting vault operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "open WALLET",
		Short: "Create the wallet's vesting vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.submit(cmd.Context(), args[0], func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.InitializeUserVault(key)
			})
			return err
		},
	})
	return cmd
}

func newLockCmd(a *app) *cobra.Command {
	var (
		days     uint64
		referral string
	)

	cmd := &cobra.Command{
		Use:   "lock WALLET AMOUNT",
		Short: "Buy sale tokens and lock them in the vault for --days",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := ledger.ParseUnits(args[1], ledger.PaymentDecimals)
			if err != nil {
				return err
			}
			ref, err := a.optionalKey(referral)
			if err != nil {
				return err
			}
			_, err = a.submit(cmd.Context(), args[0], func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.BuyAndLockToken(key, amount, days, ref)
			})
			return err
		},
	}
	cmd.Flags().Uint64VarP(&days, "days", "d", 30, "lock period in days")
	cmd.Flags().StringVarP(&referral, "referral", "r", "", "referral wallet or key")
	return cmd
}

func newUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock WALLET",
		Short: "Exit the wallet's lock before maturity, paying the penalty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.submit(cmd.Context(), args[0], func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.EarlyUnlockTokens(key, key)
			})
			return err
		},
	}
}

func newClaimCmd(a *app) *cobra.Command {
	var cranker string

	cmd := &cobra.Command{
		Use:   "claim OWNER",
		Short: "Settle a matured lock; anyone may submit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.keystore.Resolve(args[0])
			if err != nil {
				return err
			}
			signer := cranker
			if signer == "" {
				signer = args[0]
			}
			_, err = a.submit(cmd.Context(), signer, func(b *program.Builder, key solana.PublicKey) (solana.Instruction, error) {
				return b.ClaimLockedTokens(key, owner)
			})
			return err
		},
	}
	cmd.Flags().StringVar(&cranker, "cranker", "", "submitting wallet (default: the owner)")
	return cmd
}
