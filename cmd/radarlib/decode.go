package main

import (
	"context"
	"fmt"

	"github.com/jgmarti84/radarlib/internal/container"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/queue"
	"github.com/spf13/cobra"
)

// decodeCmd drives a single Converter sweep to completion: decode and
// align every currently pending-complete volume once and exit.
func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Run a single Converter sweep and exit",
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

			writer := container.NewWriter()
			conv := newConverter(st, writer, queue.NewNoopNotifier(), cfg)

			logging.Op().Info("running one Converter sweep", "radar", cfg.Radar)
			return conv.SweepOnce(ctx)
		},
	}
	return cmd
}
