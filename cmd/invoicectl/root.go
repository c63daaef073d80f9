package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/ap-automation/internal/bootstrap"
	"github.com/kirillkom/ap-automation/internal/config"
	"github.com/kirillkom/ap-automation/internal/observability/logging"
)

var (
	envFile string
	rootCmd *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "invoicectl",
		Short: "Operate the invoice processing pipeline from the command line",
		Long: `invoicectl runs invoices through the extraction, validation, coding and
approval workflow without the HTTP API, exports the approved ledger and serves
read-only invoice tools over MCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading configuration")
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newMCPCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads the environment, letting a dotenv file fill unset keys.
func loadConfig() config.Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	return config.Load()
}

// Logs go to stderr so stdout stays clean for command output and MCP framing.
func newLogger(cfg config.Config) *slog.Logger {
	return logging.NewJSONLoggerTo(os.Stderr, "invoicectl", cfg.LogLevel)
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
