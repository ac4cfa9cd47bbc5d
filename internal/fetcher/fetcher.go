// Package fetcher implements the Fetcher worker (spec.md §4.3): for each
// candidate filename from the Remote Walker, it downloads, verifies and
// records the file, then hands it to the Volume Assembler in-process.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jgmarti84/radarlib/internal/assembler"
	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/metrics"
	"github.com/jgmarti84/radarlib/internal/remote"
	"github.com/jgmarti84/radarlib/internal/store"
)

// Config tunes the Fetcher's concurrency and retry behavior.
type Config struct {
	Radar                  string
	RawDownloadRoot        string
	BasePath               string
	Extension              string
	WindowStart            time.Time
	WindowEnd              *time.Time
	PollInterval           time.Duration
	MaxConcurrentDownloads int
	VerifyChecksums        bool
	ResumePartial          bool
}

// Fetcher is a WorkerPool-shaped loop: a poller goroutine pulls candidates
// from the Walker and dispatches them across a bounded set of download
// workers, grounded on the same poller+bounded-worker-pool shape the
// ambient stack uses elsewhere in this repo for long-running pollers.
type Fetcher struct {
	client     remote.Client
	store      store.StateStore
	assembler  *assembler.Assembler
	cfg        Config
	sem        chan struct{}
	caughtUpCh chan struct{}
}

// New constructs a Fetcher. client is the already-authenticated remote
// session; st is the shared state store; asm is the in-process Volume
// Assembler invoked after each completed file.
func New(client remote.Client, st store.StateStore, asm *assembler.Assembler, cfg Config) *Fetcher {
	if cfg.MaxConcurrentDownloads <= 0 {
		cfg.MaxConcurrentDownloads = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Fetcher{
		client:     client,
		store:      st,
		assembler:  asm,
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.MaxConcurrentDownloads),
		caughtUpCh: make(chan struct{}, 1),
	}
}

// CaughtUp returns a channel that receives a signal after each sweep that
// ran with a bounded window whose end has already passed — the Supervisor's
// exit-condition trigger (spec.md §6 Exit conditions). The Fetcher does not
// look at outstanding partials itself; the Supervisor checks them, and the
// volume states, in the store before it exits.
func (f *Fetcher) CaughtUp() <-chan struct{} {
	return f.caughtUpCh
}

// Run drives one continuous sweep: it resumes the Walker from the latest
// completed observation instant for the radar, downloads every candidate
// with bounded parallelism, and sleeps poll_interval between sweeps until
// ctx is cancelled.
func (f *Fetcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := f.sweep(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, domain.ErrConfig) {
				logging.Op().Error("fetcher sweep hit fatal configuration error, stopping", "radar", f.cfg.Radar, "error", err)
				return err
			}
			logging.Op().Error("fetcher sweep failed", "radar", f.cfg.Radar, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.cfg.PollInterval):
		}
	}
}

// SweepOnce runs a single Walker pass to completion, without the Run loop's
// poll_interval sleep — the one-shot CLI's entry point for a backfill
// invocation.
func (f *Fetcher) SweepOnce(ctx context.Context) error {
	return f.sweep(ctx)
}

func (f *Fetcher) sweep(ctx context.Context) error {
	start := f.cfg.WindowStart
	if latest, ok, err := f.store.LatestObservationInstant(ctx, f.cfg.Radar); err != nil {
		return fmt.Errorf("fetcher: latest_observation_instant: %w", err)
	} else if ok && latest.After(start) {
		start = latest
	}

	walker := remote.NewWalker(f.client, f.cfg.BasePath, f.cfg.Radar, f.cfg.Extension, start, f.cfg.WindowEnd)

	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for {
		cand, ok, err := walker.Next(ctx)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		if !ok {
			break
		}

		completed, err := f.store.IsFileCompleted(ctx, cand.Filename)
		if err != nil {
			logging.Op().Error("fetcher check completed failed", "filename", cand.Filename, "error", err)
			continue
		}
		if completed {
			continue
		}

		select {
		case f.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(c remote.Candidate) {
			defer wg.Done()
			defer func() { <-f.sem }()
			if err := f.fetchOne(ctx, c); err != nil {
				logging.Op().Warn("fetcher item failed", "filename", c.Filename, "error", err)
				if errors.Is(err, domain.ErrConfig) {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}(cand)
	}

	wg.Wait()

	if f.cfg.WindowEnd != nil && !time.Now().UTC().Before(*f.cfg.WindowEnd) {
		select {
		case f.caughtUpCh <- struct{}{}:
		default:
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

// fetchOne downloads, verifies and records a single candidate per spec.md
// §4.3's per-file algorithm.
func (f *Fetcher) fetchOne(ctx context.Context, cand remote.Candidate) error {
	started := time.Now()

	parsed, err := domain.ParseFilename(cand.Filename)
	if err != nil {
		return fmt.Errorf("fetcher: %w", err)
	}

	if err := os.MkdirAll(f.cfg.RawDownloadRoot, 0o755); err != nil {
		return fmt.Errorf("fetcher: mkdir raw download root: %w", err)
	}

	finalPath := filepath.Join(f.cfg.RawDownloadRoot, cand.Filename)
	tmpPath := finalPath + ".part"

	rc, err := f.client.Open(ctx, cand.RemotePath)
	if err != nil {
		metrics.Global().ObserveFetch("failed", 0, time.Since(started).Seconds())
		return fmt.Errorf("fetcher: open %s: %w", cand.RemotePath, err)
	}
	defer rc.Close()

	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("fetcher: create temp file: %w", err)
	}

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(tmp, hasher), rc)
	closeErr := tmp.Close()

	if copyErr != nil || closeErr != nil {
		f.recordFailure(ctx, cand, written, 1)
		metrics.Global().ObserveFetch("failed", written, time.Since(started).Seconds())
		if !f.cfg.ResumePartial {
			os.Remove(tmpPath)
		}
		if copyErr != nil {
			return fmt.Errorf("fetcher: stream %s: %w", cand.Filename, copyErr)
		}
		return fmt.Errorf("fetcher: finalize temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("fetcher: rename into place: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	rec := domain.FileRecord{
		Filename:           cand.Filename,
		RemotePath:         cand.RemotePath,
		LocalPath:          finalPath,
		Size:               written,
		Digest:             digest,
		Radar:              parsed.Radar,
		Field:              parsed.Field,
		VolumeCode:         parsed.VolumeCode,
		VolumeNumber:       parsed.VolumeNumber,
		ObservationInstant: parsed.Observation,
		Status:             domain.FileCompleted,
	}
	if err := f.store.RecordCompletedFile(ctx, rec); err != nil {
		return fmt.Errorf("fetcher: record_completed_file: %w", err)
	}

	metrics.Global().ObserveFetch("completed", written, time.Since(started).Seconds())
	logging.Default().Log(&logging.ItemLog{
		Stage: "fetch", Radar: parsed.Radar, Item: cand.Filename,
		DurationMs: time.Since(started).Milliseconds(), Success: true, BytesMoved: written,
	})

	if err := f.assembler.OnFileCompleted(ctx, parsed); err != nil {
		return fmt.Errorf("fetcher: assemble volume for %s: %w", cand.Filename, err)
	}
	return nil
}

func (f *Fetcher) recordFailure(ctx context.Context, cand remote.Candidate, bytesWritten int64, attempt int) {
	partial := domain.PartialDownload{
		Filename:        cand.Filename,
		RemotePath:      cand.RemotePath,
		LocalPath:       filepath.Join(f.cfg.RawDownloadRoot, cand.Filename+".part"),
		BytesDownloaded: bytesWritten,
		AttemptCount:    attempt,
		LastAttempt:     time.Now().UTC(),
	}
	if err := f.store.RecordPartial(ctx, partial); err != nil {
		logging.Op().Error("fetcher record_partial failed", "filename", cand.Filename, "error", err)
	}
}
