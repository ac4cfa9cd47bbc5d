// Package supervisor owns the lifecycle of the Fetcher, Converter and
// Renderer workers (spec.md §4.7): it starts them as concurrent
// cooperative loops, propagates shutdown signals through a shared
// draining context, and exposes the polling statistics view plus a
// health/metrics HTTP surface.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/metrics"
	"github.com/jgmarti84/radarlib/internal/retention"
	"github.com/jgmarti84/radarlib/internal/store"
)

// Worker is the shape every long-running stage conforms to: a single
// blocking Run call that returns when ctx is cancelled or an unrecoverable
// error occurs.
type Worker interface {
	Run(ctx context.Context) error
}

// Config tunes the Supervisor's shutdown behavior and HTTP surface.
type Config struct {
	ShutdownGrace time.Duration
	MetricsAddr   string // empty disables the HTTP surface
}

// Supervisor runs the Fetcher, Converter and zero or more Renderer
// instances concurrently, and the retention sweep alongside them.
type Supervisor struct {
	store    store.StateStore
	fetcher  Worker
	converter Worker
	renderers []Worker
	sweeper  *retention.Sweeper
	cfg      Config

	caughtUp   <-chan struct{}
	windowEnd  bool

	mu       sync.Mutex
	liveness map[string]bool
}

// New constructs a Supervisor. caughtUp, if non-nil, is the Fetcher's
// CaughtUp channel; windowEnd reports whether the configuration set a
// bounded end_instant, gating the automatic-exit condition of spec.md §6.
func New(st store.StateStore, fetcher, converter Worker, renderers []Worker, sweeper *retention.Sweeper, caughtUp <-chan struct{}, windowEnd bool, cfg Config) *Supervisor {
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	return &Supervisor{
		store:     st,
		fetcher:   fetcher,
		converter: converter,
		renderers: renderers,
		sweeper:   sweeper,
		cfg:       cfg,
		caughtUp:  caughtUp,
		windowEnd: windowEnd,
		liveness:  make(map[string]bool),
	}
}

// Run starts every worker and blocks until ctx is cancelled (by the
// caller, typically after wiring signal.NotifyContext) or, when the
// configuration has a bounded end_instant, until the Fetcher reports it
// has caught up and the store shows no partial downloads and no pending or
// processing volume rows (spec.md §6 Exit conditions). It returns nil on a
// clean exit and the error of the first worker that exits with a non-nil
// error.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2+len(s.renderers))

	s.sweeper.Start()
	defer s.sweeper.Stop()

	s.runWorker(ctx, &wg, errCh, "fetcher", s.fetcher)
	s.runWorker(ctx, &wg, errCh, "converter", s.converter)
	for i, r := range s.renderers {
		s.runWorker(ctx, &wg, errCh, fmt.Sprintf("renderer-%d", i), r)
	}

	var srv *http.Server
	if s.cfg.MetricsAddr != "" {
		srv = s.startHTTP()
	}

	go s.refreshGauges(ctx)

	exitCh := make(chan struct{})
	if s.windowEnd && s.caughtUp != nil {
		go s.watchExitCondition(ctx, exitCh)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = err
		cancel()
	case <-exitCh:
		logging.Op().Info("supervisor: exit condition reached, draining")
		cancel()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		logging.Op().Warn("supervisor: shutdown grace period elapsed before all workers exited")
	}

	if srv != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
	}

	if err := s.store.Close(); err != nil {
		logging.Op().Error("supervisor: close store failed", "error", err)
	}

	return runErr
}

func (s *Supervisor) runWorker(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error, name string, w Worker) {
	wg.Add(1)
	s.setAlive(name, true)
	metrics.Global().SetWorkerAlive(name, true)
	go func() {
		defer wg.Done()
		defer s.setAlive(name, false)
		defer metrics.Global().SetWorkerAlive(name, false)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Op().Error("supervisor: worker exited with error", "worker", name, "error", err)
			select {
			case errCh <- fmt.Errorf("%s: %w", name, err):
			default:
			}
		}
	}()
}

// watchExitCondition polls the store once the Fetcher signals it has
// caught up, closing exitCh once no volume row is pending or processing and
// no partial downloads remain. Product rows are not checked.
func (s *Supervisor) watchExitCondition(ctx context.Context, exitCh chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.caughtUp:
		}

		st, err := s.store.Stats(ctx)
		if err != nil {
			logging.Op().Error("supervisor: stats query failed while checking exit condition", "error", err)
			continue
		}
		if st.PartialDownloads == 0 && st.VolumesPending == 0 && st.VolumesProcessing == 0 {
			close(exitCh)
			return
		}
	}
}

// refreshGauges polls the store's statistics view every few seconds and
// publishes them onto the Prometheus gauges the Supervisor's /metrics
// endpoint scrapes — the "exposes a polling statistics view" half of
// spec.md §4.7, complementing the push-style counters each worker
// increments directly.
func (s *Supervisor) refreshGauges(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		st, err := s.store.Stats(ctx)
		if err != nil {
			continue
		}
		metrics.Global().SetStoreGauges(
			float64(st.VolumesPending), float64(st.VolumesProcessing),
			float64(st.VolumesCompleted), float64(st.VolumesFailed),
			map[string]float64{
				"pending":    float64(st.ProductsPending),
				"processing": float64(st.ProductsProcessing),
				"completed":  float64(st.ProductsCompleted),
				"failed":     float64(st.ProductsFailed),
			},
		)
	}
}

func (s *Supervisor) setAlive(name string, alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness[name] = alive
}

// Liveness returns a snapshot of which named workers are currently
// running.
func (s *Supervisor) Liveness() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.liveness))
	for k, v := range s.liveness {
		out[k] = v
	}
	return out
}

// Stats returns the store's aggregate statistics view (spec.md §4.7).
func (s *Supervisor) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Supervisor) startHTTP() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if pm := metrics.Global(); pm != nil {
		mux.Handle("/metrics", pm.Handler())
	}

	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Op().Error("supervisor: http server failed", "error", err)
		}
	}()
	return srv
}
