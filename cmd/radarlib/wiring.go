package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jgmarti84/radarlib/internal/assembler"
	"github.com/jgmarti84/radarlib/internal/config"
	"github.com/jgmarti84/radarlib/internal/converter"
	"github.com/jgmarti84/radarlib/internal/decoder"
	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/fetcher"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/metrics"
	"github.com/jgmarti84/radarlib/internal/observability"
	"github.com/jgmarti84/radarlib/internal/queue"
	"github.com/jgmarti84/radarlib/internal/remote"
	"github.com/jgmarti84/radarlib/internal/renderer"
	"github.com/jgmarti84/radarlib/internal/store"
	"github.com/spf13/cobra"
)

// loadConfig layers configuration exactly as the ambient stack's daemon
// entrypoints do: defaults, then an optional file, then environment
// variables, then any flags the caller explicitly set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)

	if cmd.Flags().Changed("pg-dsn") {
		cfg.Dirs.StateStoreDSN = pgDSN
	}
	return cfg, nil
}

// initAmbient wires the logging, tracing and metrics surface shared by
// every subcommand.
func initAmbient(ctx context.Context, cfg *config.Config) error {
	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Metrics.Namespace)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.PostgresStore, error) {
	return store.NewPostgresStore(ctx, cfg.Dirs.StateStoreDSN)
}

func newNotifier(cfg *config.Config) (queue.Notifier, error) {
	switch cfg.Notifier.Kind {
	case "channel":
		return queue.NewChannelNotifier(), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.Notifier.RedisDSN)
		if err != nil {
			return nil, fmt.Errorf("parse notifier.redis_dsn: %w", err)
		}
		return queue.NewRedisNotifier(redis.NewClient(opts)), nil
	default:
		return queue.NewNoopNotifier(), nil
	}
}

func newRemoteClient(cfg *config.Config) (*remote.SFTPClient, error) {
	return remote.Dial(remote.Config{
		Host:     cfg.Remote.Host,
		Port:     cfg.Remote.Port,
		Username: cfg.Remote.Username,
		Password: cfg.Remote.Password,
	})
}

func newAssembler(st store.StateStore, notifier queue.Notifier, cfg *config.Config) *assembler.Assembler {
	return assembler.New(st, assembler.ExpectedFieldsMap(cfg.Expected), notifier)
}

func newFetcher(client remote.Client, st store.StateStore, asm *assembler.Assembler, cfg *config.Config) *fetcher.Fetcher {
	return fetcher.New(client, st, asm, fetcher.Config{
		Radar:                  cfg.Radar,
		RawDownloadRoot:        cfg.Dirs.RawDownloadRoot,
		BasePath:               cfg.Remote.BasePath,
		Extension:              cfg.Remote.Extension,
		WindowStart:            cfg.Window.Start,
		WindowEnd:              cfg.Window.End,
		PollInterval:           cfg.Tuning.PollInterval,
		MaxConcurrentDownloads: cfg.Tuning.MaxConcurrentDownloads,
		VerifyChecksums:        cfg.Tuning.VerifyChecksums,
		ResumePartial:          cfg.Tuning.ResumePartial,
	})
}

func retryConfig(cfg *config.Config) decoder.RetryConfig {
	return decoder.RetryConfig{
		MaxAttempts: cfg.Tuning.DecoderMaxAttempts,
		BaseBackoff: time.Duration(cfg.Tuning.DecoderBackoffBaseMS) * time.Millisecond,
		MaxBackoff:  time.Duration(cfg.Tuning.DecoderBackoffMaxMS) * time.Millisecond,
	}
}

func newConverter(st store.StateStore, writer converter.ContainerWriter, notifier queue.Notifier, cfg *config.Config) *converter.Converter {
	dec := decoder.NewProcess(cfg.Dirs.DecoderBinary)
	return converter.New(st, st, dec, writer, notifier, converter.Config{
		OutputRoot:    cfg.Dirs.ContainerRoot,
		ResourcesDir:  cfg.Dirs.DecoderResources,
		PollInterval:  cfg.Tuning.PollInterval,
		MaxConcurrent: cfg.Tuning.MaxConcurrentDecodes,
		RetryConfig:   retryConfig(cfg),
		OutputExt:     "nc",
	})
}

func productTypeFromString(s string) domain.ProductType {
	switch s {
	case "geotiff":
		return domain.ProductGeoTIFF
	default:
		return domain.ProductImage
	}
}

func newRenderers(st store.StateStore, reader renderer.ContainerReader, notifier queue.Notifier, cfg *config.Config) []*renderer.Renderer {
	out := make([]*renderer.Renderer, 0, len(cfg.Renderer.ProductTypes))
	for _, pt := range cfg.Renderer.ProductTypes {
		out = append(out, renderer.New(st, reader, notifier, renderer.Config{
			ProductRoot:  cfg.Dirs.ProductRoot,
			ProductType:  productTypeFromString(pt),
			AddColmax:    cfg.Renderer.AddColmax,
			PollInterval: cfg.Tuning.PollInterval,
		}))
	}
	return out
}
