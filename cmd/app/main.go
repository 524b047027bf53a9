package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"EdgeScan/internal/di"
	"EdgeScan/pkg/config"
	"EdgeScan/pkg/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "edgescan",
	Short: "Technical signal detection and composite scoring for equities",
	Long: `EdgeScan computes indicators and pattern signals over daily price
history, blends them into a 0-100 edge score per symbol, ranks a universe
and backtests logged scores against later prices.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (empty for defaults + env)")
	rootCmd.AddCommand(scanCmd, backtestCmd, serveCmd, consumeCmd, ingestCmd)
}

// withApp loads config, wires the app and runs fn with a context that
// ends on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, app *server.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, app)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
