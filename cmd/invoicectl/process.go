package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/ap-automation/internal/core/usecase"
)

func newProcessCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Upload a document and run the workflow synchronously",
		Long: `Process stores the document, runs the full workflow in this process and
prints the resulting processing record as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			cfg.ProcessInline = true
			logger := newLogger(cfg)

			app, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			user, err := app.Auth.Authenticate(cmd.Context(), usecase.DemoTokenPrefix+username)
			if err != nil {
				return fmt.Errorf("resolve user %q: %w", username, err)
			}

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			inv, err := app.IngestUC.Upload(cmd.Context(), user, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
			if err != nil {
				return err
			}
			rec, err := app.InvoiceUC.Record(cmd.Context(), inv.ID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.Flags().StringVar(&username, "user", "admin", "Demo user recorded as the uploader")
	return cmd
}
