package main

import (
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/ap-automation/internal/adapters/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only invoice tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			// Tools only read; nothing is published to the queue.
			cfg.ProcessInline = true
			logger := newLogger(cfg)

			app, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			logger.Info("mcp_stdio_serving")
			return mcpadapter.NewServer(app.InvoiceUC).ServeStdio(logger)
		},
	}
}
