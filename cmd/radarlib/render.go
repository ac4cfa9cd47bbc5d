package main

import (
	"context"
	"fmt"

	"github.com/jgmarti84/radarlib/internal/container"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/queue"
	"github.com/spf13/cobra"
)

// renderCmd drives a single sweep of every configured Renderer to
// completion: produce whatever products are currently pending and exit.
func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Run a single sweep of every configured Renderer and exit",
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

			reader := container.NewReader()
			renderers := newRenderers(st, reader, queue.NewNoopNotifier(), cfg)

			for _, r := range renderers {
				logging.Op().Info("running one Renderer sweep", "radar", cfg.Radar)
				if err := r.SweepOnce(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}
