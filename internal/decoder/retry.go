package decoder

import (
	"context"
	"math"
	"time"
)

// RetryConfig bounds the Converter's retry policy around a flaky Decoder
// call (spec.md §4.5/§6: "may fail sporadically on valid inputs; callers
// must retry with bounded backoff, exponential, capped at ~60s, bounded
// attempt count").
type RetryConfig struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// DefaultRetryConfig matches spec.md's defaults: ~3 attempts per volume per
// sweep, exponential backoff capped at 60s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 60 * time.Second}
}

// WithRetry wraps d so Decode retries on failure up to cfg.MaxAttempts
// times with exponential backoff, returning the number of attempts made
// alongside the final result or error.
type WithRetry struct {
	Decoder Decoder
	Config  RetryConfig
}

// Decode calls the underlying Decoder, retrying failures per Config. It
// returns the decoded volume, the number of attempts made, and the last
// error if every attempt failed.
func (r *WithRetry) Decode(ctx context.Context, filePath, resourcesDir string) (*VolumeDict, int, error) {
	cfg := r.Config
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		vol, err := r.Decoder.Decode(ctx, filePath, resourcesDir)
		if err == nil {
			return vol, attempt, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(backoff(attempt, cfg.BaseBackoff, cfg.MaxBackoff)):
		}
	}
	return nil, cfg.MaxAttempts, lastErr
}

func backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 60 * time.Second
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > max {
		d = max
	}
	return d
}
