// Package converter implements the Decoder/Converter worker (spec.md
// §4.5): for each volume that is complete and pending, it decodes every
// constituent file through the Decoder FFI adapter, aligns the results
// onto a common range grid, and persists the canonical radar object to the
// output container.
package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jgmarti84/radarlib/internal/decoder"
	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/metrics"
	"github.com/jgmarti84/radarlib/internal/queue"
	"github.com/jgmarti84/radarlib/internal/radar"
	"github.com/jgmarti84/radarlib/internal/store"
	"golang.org/x/sync/errgroup"
)

// FileLookup resolves a volume's constituent filenames and their local
// paths. The Converter depends only on this narrow capability, not on the
// store's full surface, so it can be faked cheaply in tests.
type FileLookup interface {
	// FilesForVolume returns the local path of every completed file
	// belonging to id, keyed by field name.
	FilesForVolume(ctx context.Context, id domain.VolumeID) (map[string]string, error)
}

// Config tunes the Converter's concurrency, output layout, and retry
// policy around the decoder FFI.
type Config struct {
	OutputRoot       string
	ResourcesDir     string
	PollInterval     time.Duration
	MaxConcurrent    int
	RetryConfig      decoder.RetryConfig
	OutputExt        string
}

// Converter is the worker loop claiming complete volumes and driving them
// through decode, align, and container write.
type Converter struct {
	store    store.StateStore
	files    FileLookup
	dec      decoder.Decoder
	writer   ContainerWriter
	notifier queue.Notifier
	cfg      Config
	sem      chan struct{}
}

// ContainerWriter is the capability the Converter needs from
// internal/container: persist an aligned radar.Volume to disk.
type ContainerWriter interface {
	Write(path string, vol *radar.Volume) error
}

// New constructs a Converter. dec is the bare decoder: each volume's
// conversion wraps it in decoder.WithRetry with cfg.RetryConfig, so callers
// do not wrap it themselves.
func New(st store.StateStore, files FileLookup, dec decoder.Decoder, writer ContainerWriter, notifier queue.Notifier, cfg Config) *Converter {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.OutputExt == "" {
		cfg.OutputExt = "nc"
	}
	if notifier == nil {
		notifier = queue.NewNoopNotifier()
	}
	return &Converter{
		store:    st,
		files:    files,
		dec:      dec,
		writer:   writer,
		notifier: notifier,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Run drives sweeps until ctx is cancelled: list pending-complete volumes,
// claim and process each with bounded concurrency, then wait for either the
// poll interval or a push notification before sweeping again.
func (c *Converter) Run(ctx context.Context) error {
	wake := c.notifier.Subscribe(ctx, queue.QueueVolume)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := c.sweep(ctx); err != nil {
			logging.Op().Error("converter sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

// SweepOnce claims and processes every currently pending-complete volume
// once, without the Run loop's poll_interval sleep — the one-shot CLI's
// entry point for a backfill invocation.
func (c *Converter) SweepOnce(ctx context.Context) error {
	return c.sweep(ctx)
}

func (c *Converter) sweep(ctx context.Context) error {
	volumes, err := c.store.ListVolumesForProcessing(ctx)
	if err != nil {
		return fmt.Errorf("converter: list_volumes_for_processing: %w", err)
	}

	done := make(chan struct{}, len(volumes))
	for _, vol := range volumes {
		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		go func(v domain.Volume) {
			defer func() { <-c.sem }()
			defer func() { done <- struct{}{} }()
			c.processOne(ctx, v)
		}(vol)
	}
	for range volumes {
		<-done
	}
	return nil
}

// processOne claims, decodes, aligns and writes a single volume, recording
// its terminal status. It never returns an error: all failures are
// captured into the volume row per spec.md §7's propagation policy.
func (c *Converter) processOne(ctx context.Context, vol domain.Volume) {
	started := time.Now()

	ok, err := c.store.ClaimVolumeForProcessing(ctx, vol.ID)
	if err != nil {
		logging.Op().Error("converter claim failed", "volume", vol.ID.String(), "error", err)
		return
	}
	if !ok {
		return // lost the race to another Converter instance
	}

	outPath, stageErr, retries := c.convert(ctx, vol)
	if stageErr != nil {
		if err := c.store.MarkVolumeFailed(ctx, vol.ID, stageErr); err != nil {
			logging.Op().Error("converter mark_volume_failed failed", "volume", vol.ID.String(), "error", err)
		}
		metrics.Global().ObserveVolume("failed", time.Since(started).Seconds(), retries)
		logging.Default().Log(&logging.ItemLog{
			Stage: "convert", Radar: vol.ID.Radar, Item: vol.ID.String(),
			DurationMs: time.Since(started).Milliseconds(), Success: false,
			ErrorClass: stageErr.Class, Error: stageErr.Message, Retries: retries,
		})
		return
	}

	if err := c.store.MarkVolumeProcessed(ctx, vol.ID, outPath); err != nil {
		logging.Op().Error("converter mark_volume_processed failed", "volume", vol.ID.String(), "error", err)
		return
	}

	metrics.Global().ObserveVolume("completed", time.Since(started).Seconds(), retries)
	logging.Default().Log(&logging.ItemLog{
		Stage: "convert", Radar: vol.ID.Radar, Item: vol.ID.String(),
		DurationMs: time.Since(started).Milliseconds(), Success: true, Retries: retries,
	})
	if err := c.notifier.Notify(ctx, queue.QueueProduct); err != nil {
		logging.Op().Warn("converter notify failed", "volume", vol.ID.String(), "error", err)
	}
}

// convert performs the decode-align-write sequence for one volume,
// returning either the output path or a StageError classified per
// spec.md §4.5.
func (c *Converter) convert(ctx context.Context, vol domain.Volume) (string, *domain.StageError, int) {
	paths, err := c.files.FilesForVolume(ctx, vol.ID)
	if err != nil {
		return "", domain.NewStageError(domain.ErrClassFileNotFound, err.Error()), 0
	}

	retry := &decoder.WithRetry{Decoder: c.dec, Config: c.cfg.RetryConfig}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	// Constituent files for a volume decode independently, so the legacy
	// decoder's per-sweep thread pool (§9 "parallel decode of sweeps with
	// a thread pool") is mirrored one level up: a bounded group decodes
	// every field concurrently, the same bounded-fan-out shape as the
	// Fetcher's download semaphore.
	var (
		mu           sync.Mutex
		decoded      = make(map[string]*decoder.VolumeDict, len(paths))
		totalRetries int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decodeFanOut)

	for _, field := range names {
		field, path := field, paths[field]
		g.Go(func() error {
			if _, err := os.Stat(path); err != nil {
				return domain.NewStageError(domain.ErrClassFileNotFound,
					fmt.Sprintf("constituent file for field %q missing on disk: %s", field, path))
			}

			vd, attempts, err := retry.Decode(gctx, path, c.cfg.ResourcesDir)
			atomic.AddInt64(&totalRetries, int64(attempts-1))
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return domain.NewStageError(domain.ErrClassDecoder, "cancelled")
				}
				return domain.NewStageError(domain.ErrClassDecoder, err.Error())
			}

			mu.Lock()
			decoded[field] = vd
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			return "", stageErr, int(totalRetries)
		}
		return "", domain.NewStageError(domain.ErrClassDecoder, err.Error()), int(totalRetries)
	}
	retries := int(totalRetries)

	aligned, err := radar.Align(vol.ID, decoded)
	if err != nil {
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			return "", stageErr, retries
		}
		return "", domain.NewStageError(domain.ErrClassGeometryMismatch, err.Error()), retries
	}

	outPath := OutputPath(c.cfg.OutputRoot, vol.ID, c.cfg.OutputExt)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", domain.NewStageError(domain.ErrClassIOError, err.Error()), retries
	}
	if err := c.writer.Write(outPath, aligned); err != nil {
		os.Remove(outPath)
		return "", domain.NewStageError(domain.ErrClassIOError, err.Error()), retries
	}

	return outPath, nil, retries
}

// decodeFanOut bounds how many of a volume's constituent files decode
// concurrently — the converter-side mirror of the legacy decoder's own
// bounded per-sweep thread pool.
const decodeFanOut = 4

// OutputPath builds the canonical container path for a volume:
// <out_root>/<radar>/YYYY/MM/DD/<radar>_<volcode>_<volnum>_<YYYYMMDDTHHMMSSZ>.<ext>
// (spec.md §4.5).
func OutputPath(root string, id domain.VolumeID, ext string) string {
	obs := id.Observation.UTC()
	filename := fmt.Sprintf("%s_%s_%s_%s.%s",
		id.Radar, id.VolumeCode, id.VolumeNumber, obs.Format("20060102T150405Z"), ext)
	return filepath.Join(root, id.Radar, obs.Format("2006"), obs.Format("01"), obs.Format("02"), filename)
}
