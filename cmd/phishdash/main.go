// Command phishdash serves the phishing URL dashboard and offers offline
// predict and stats commands over the same model and dataset.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/veil-waf/phishdash/internal/app"
	"github.com/veil-waf/phishdash/internal/config"
	"github.com/veil-waf/phishdash/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "phishdash",
		Short:        "Classify URLs as safe or malicious and chart the training dataset",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(newServeCmd(opts), newPredictCmd(opts), newStatsCmd(opts))
	return root
}

// loadApp reads the config and builds the application context. Offline
// commands pass withHistory=false so no database is opened.
func loadApp(ctx context.Context, opts *rootOptions, withHistory bool) (*app.App, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if !withHistory {
		cfg.DatabaseURL = ""
		cfg.HistoryRetention = 0
	}
	logger := server.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
