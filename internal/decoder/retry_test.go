package decoder

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyDecoder struct {
	failures int
	calls    int
}

func (f *flakyDecoder) Decode(_ context.Context, _, _ string) (*VolumeDict, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient decode failure")
	}
	return &VolumeDict{Meta: VolumeMeta{Sweeps: []Sweep{{NGates: 10}}}}, nil
}

func TestWithRetry_SucceedsAfterFlake(t *testing.T) {
	d := &flakyDecoder{failures: 1}
	r := &WithRetry{Decoder: d, Config: RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}}

	vol, attempts, err := r.Decode(context.Background(), "f", "r")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if vol == nil {
		t.Fatal("expected non-nil volume")
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	d := &flakyDecoder{failures: 100}
	r := &WithRetry{Decoder: d, Config: RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}}

	_, attempts, err := r.Decode(context.Background(), "f", "r")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	d := &flakyDecoder{failures: 100}
	r := &WithRetry{Decoder: d, Config: RetryConfig{MaxAttempts: 5, BaseBackoff: time.Hour, MaxBackoff: time.Hour}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, _, err := r.Decode(ctx, "f", "r")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
