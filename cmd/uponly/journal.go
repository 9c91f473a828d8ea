// cmd/uponly/journal.go
package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/up-only/internal/export"
)

func newJournalCmd(a *app) *cobra.Command {
	var (
		who       string
		operation string
		limit     int
		offset    int
		format    string
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List or export committed operations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}

			var signer solana.PublicKey
			if who != "" {
				if signer, err = a.keystore.Resolve(who); err != nil {
					return err
				}
			}
			entries, err := eng.Journal(cmd.Context(), signer, limit, offset)
			if err != nil {
				return err
			}

			if format != "" {
				exporter := export.NewJournalExporter(a.logger)
				path, err := exporter.Export(entries, export.ExportOptions{
					Format:          export.ExportFormat(strings.ToLower(format)),
					OperationFilter: operation,
					OutputDir:       outDir,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, path)
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, strings.Join(export.CSVHeaders(), "\t"))
			for _, e := range entries {
				if operation != "" && e.Operation != operation {
					continue
				}
				fmt.Fprintln(tw, strings.Join(export.CSVRecord(e), "\t"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&who, "wallet", "w", "", "only operations signed by this wallet")
	cmd.Flags().StringVar(&operation, "operation", "", "only this operation, e.g. buy_token")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many newest entries")
	cmd.Flags().StringVar(&format, "export", "", "write a csv or json file instead of printing")
	cmd.Flags().StringVar(&outDir, "out", ".", "export directory")
	return cmd
}
