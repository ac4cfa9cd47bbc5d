package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statsCmd prints the state store's aggregate statistics view once — the
// same polling snapshot the Supervisor's /metrics gauges are refreshed
// from, surfaced for a one-off operator check without scraping Prometheus.
func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the state store's aggregate statistics once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			defer st.Close()

			stats, err := st.Stats(ctx)
			if err != nil {
				return fmt.Errorf("query stats: %w", err)
			}

			fmt.Printf("files_completed:     %d\n", stats.FilesCompleted)
			fmt.Printf("partial_downloads:   %d\n", stats.PartialDownloads)
			fmt.Printf("volumes_pending:     %d\n", stats.VolumesPending)
			fmt.Printf("volumes_processing:  %d\n", stats.VolumesProcessing)
			fmt.Printf("volumes_completed:   %d\n", stats.VolumesCompleted)
			fmt.Printf("volumes_failed:      %d\n", stats.VolumesFailed)
			fmt.Printf("products_pending:    %d\n", stats.ProductsPending)
			fmt.Printf("products_processing: %d\n", stats.ProductsProcessing)
			fmt.Printf("products_completed:  %d\n", stats.ProductsCompleted)
			fmt.Printf("products_failed:     %d\n", stats.ProductsFailed)
			return nil
		},
	}
	return cmd
}
