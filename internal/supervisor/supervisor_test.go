package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/jgmarti84/radarlib/internal/retention"
	"github.com/jgmarti84/radarlib/internal/store"
)

type fakeWorker struct {
	ran   chan struct{}
	block chan struct{}
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{ran: make(chan struct{}, 1), block: make(chan struct{})}
}

func (w *fakeWorker) Run(ctx context.Context) error {
	select {
	case w.ran <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return nil
	case <-w.block:
		return nil
	}
}

type fakeStore struct {
	store.StateStore
	closed bool
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

func (s *fakeStore) Stats(_ context.Context) (store.Stats, error) {
	return store.Stats{}, nil
}

func TestSupervisor_StartsWorkersAndClosesStoreOnShutdown(t *testing.T) {
	st := &fakeStore{}
	fetcher := newFakeWorker()
	conv := newFakeWorker()
	render := newFakeWorker()

	sweeper := retention.New(st, time.Hour, time.Hour)
	sup := New(st, fetcher, conv, []Worker{render}, sweeper, nil, false, Config{ShutdownGrace: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	for _, w := range []*fakeWorker{fetcher, conv, render} {
		select {
		case <-w.ran:
		case <-time.After(time.Second):
			t.Fatal("worker did not start")
		}
	}

	live := sup.Liveness()
	if !live["fetcher"] || !live["converter"] || !live["renderer-0"] {
		t.Fatalf("expected all workers alive, got %v", live)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down in time")
	}

	if !st.closed {
		t.Fatal("expected store to be closed on shutdown")
	}
}
