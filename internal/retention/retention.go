// Package retention runs the stuck-work recovery sweep: a light periodic
// task that resets rows stuck in a processing state back to pending after a
// worker crashes between claiming an item and committing its terminal
// state.
package retention

import (
	"context"
	"time"

	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/metrics"
	"github.com/jgmarti84/radarlib/internal/store"
)

// Sweeper periodically resets stuck volume and product rows back to
// pending.
type Sweeper struct {
	store        store.StateStore
	interval     time.Duration
	stuckTimeout time.Duration
	stopCh       chan struct{}
	done         chan struct{}
}

// New constructs a Sweeper. interval is how often the sweep runs;
// stuckTimeout is how long a row may sit in processing before it is
// considered abandoned.
func New(st store.StateStore, interval, stuckTimeout time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if stuckTimeout <= 0 {
		stuckTimeout = 60 * time.Minute
	}
	return &Sweeper{
		store:        st,
		interval:     interval,
		stuckTimeout: stuckTimeout,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the sweep loop in a background goroutine until Stop is called.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.stuckTimeout)

	for _, entity := range []store.Entity{store.EntityVolume, store.EntityProduct} {
		n, err := s.store.ResetStuck(ctx, entity, cutoff)
		if err != nil {
			logging.Op().Error("retention sweep failed", "entity", entity, "error", err)
			continue
		}
		metrics.Global().ObserveStuckReset(string(entity), n)
		if n > 0 {
			logging.Op().Info("retention sweep reset stuck rows", "entity", entity, "count", n)
		}
	}
}
