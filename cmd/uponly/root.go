// cmd/uponly/root.go
package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// execute runs the CLI with args and releases what the command opened,
// whether or not it failed.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "uponly",
		Short: "Up-only token sale settlement engine",
		Long: `uponly settles a token sale whose unit price never decreases.

Participants buy an access pass, then buy or sell the sale token against a
bonding-curve reserve, or lock purchases in a vesting vault. Every command
that changes state is signed with a key from the wallets file and executed
as a single atomic instruction.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().BoolVarP(&a.debug, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newWalletCmd(a),
		newDeployCmd(a),
		newFaucetCmd(a),
		newInitCmd(a),
		newTeamCmd(a),
		newPassCmd(a),
		newBuyCmd(a),
		newSellCmd(a),
		newQuoteCmd(a),
		newVaultCmd(a),
		newLockCmd(a),
		newUnlockCmd(a),
		newClaimCmd(a),
		newFounderCmd(a),
		newStatusCmd(a),
		newCrankCmd(a),
		newJournalCmd(a),
	)
	return root
}
