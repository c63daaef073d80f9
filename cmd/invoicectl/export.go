package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger of approved invoices as an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			cfg.ProcessInline = true
			logger := newLogger(cfg)

			app, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := app.InvoiceUC.ExportLedger(cmd.Context(), f); err != nil {
				_ = f.Close()
				_ = os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			logger.Info("ledger_exported", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "ledger.xlsx", "Destination file")
	return cmd
}
