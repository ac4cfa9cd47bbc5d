package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jgmarti84/radarlib/internal/container"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/observability"
	"github.com/jgmarti84/radarlib/internal/retention"
	"github.com/jgmarti84/radarlib/internal/supervisor"
	"github.com/spf13/cobra"
)

// runCmd is the primary entry point: the Supervisor daemon running the
// Fetcher, Converter and every configured Renderer concurrently until a
// shutdown signal arrives or, for a bounded window, until no partial
// download remains and no volume is pending or processing.
func runCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Fetcher, Converter and Renderer workers under one supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := initAmbient(ctx, cfg); err != nil {
				return err
			}
			defer observability.Shutdown(context.Background())

			st, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}

			client, err := newRemoteClient(cfg)
			if err != nil {
				return fmt.Errorf("dial remote server: %w", err)
			}
			defer client.Close()

			notifier, err := newNotifier(cfg)
			if err != nil {
				return fmt.Errorf("build notifier: %w", err)
			}
			defer notifier.Close()

			asm := newAssembler(st, notifier, cfg)
			ftr := newFetcher(client, st, asm, cfg)

			writer := container.NewWriter()
			conv := newConverter(st, writer, notifier, cfg)

			reader := container.NewReader()
			renderers := newRenderers(st, reader, notifier, cfg)
			workers := make([]supervisor.Worker, len(renderers))
			for i, r := range renderers {
				workers[i] = r
			}

			sweeper := retention.New(st, cfg.Tuning.RetentionInterval, cfg.Tuning.StuckTimeout)

			sup := supervisor.New(st, ftr, conv, workers, sweeper, ftr.CaughtUp(), cfg.Window.End != nil, supervisor.Config{
				ShutdownGrace: cfg.Tuning.ShutdownGrace,
				MetricsAddr:   cfg.Metrics.Addr,
			})

			logging.Op().Info("radarlib supervisor started", "radar", cfg.Radar)
			runErr := sup.Run(ctx)
			logging.Op().Info("radarlib supervisor stopped")
			return runErr
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	return cmd
}
