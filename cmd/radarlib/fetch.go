package main

import (
	"context"
	"fmt"

	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/queue"
	"github.com/spf13/cobra"
)

// fetchCmd drives a single Walker pass to completion: an operator-invoked
// backfill that downloads every currently-published candidate once and
// exits, rather than running the Fetcher's continuous poll loop.
func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run a single Fetcher sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			if err := initAmbient(ctx, cfg); err != nil {
				return err
			}

			st, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			defer st.Close()

			client, err := newRemoteClient(cfg)
			if err != nil {
				return fmt.Errorf("dial remote server: %w", err)
			}
			defer client.Close()

			asm := newAssembler(st, queue.NewNoopNotifier(), cfg)
			ftr := newFetcher(client, st, asm, cfg)

			logging.Op().Info("running one Fetcher sweep", "radar", cfg.Radar)
			return ftr.SweepOnce(ctx)
		},
	}
	return cmd
}
