package remote

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jgmarti84/radarlib/internal/domain"
)

// Candidate is one file the Walker has discovered under the calendar
// hierarchy, ready for the Fetcher to consider.
type Candidate struct {
	RemotePath string
	Filename   string
}

// Walker produces, in order, candidate file paths under one radar's tree:
//
//	<base>/<radar>/<YYYY>/<MM>/<DD>/<HH>/<mmss>/<filename>
//
// It is a pull-based, lazy iterator (spec.md §4.2 Suspension): Next blocks
// until a candidate is ready, the hour range is exhausted, or ctx is
// cancelled. Traversal order is non-decreasing in observation time because
// hours are visited in order and bucket names (the four-digit mmss) sort
// lexicographically the same as temporally.
type Walker struct {
	client   Client
	basePath string
	radar    string
	ext      string
	end      *time.Time

	cursor      time.Time // next hour to list, hour-aligned UTC
	bucketQueue []bucketEntry
	pending     []Candidate
}

type bucketEntry struct {
	hour   time.Time
	bucket string
}

// NewWalker constructs a Walker starting at the hour containing start and
// ending, if end is non-nil, at the hour containing *end (inclusive).
func NewWalker(client Client, basePath, radar, ext string, start time.Time, end *time.Time) *Walker {
	return &Walker{
		client:   client,
		basePath: basePath,
		radar:    radar,
		ext:      ext,
		end:      end,
		cursor:   start.UTC().Truncate(time.Hour),
	}
}

// Next returns the next candidate file in traversal order. ok is false once
// the hours up to the earlier of the configured end and "now" (just "now"
// for an open-ended window) have been enumerated; the caller should sleep poll_interval
// and call Next again to pick up newly published hours.
func (w *Walker) Next(ctx context.Context) (Candidate, bool, error) {
	for {
		if len(w.pending) > 0 {
			c := w.pending[0]
			w.pending = w.pending[1:]
			return c, true, nil
		}

		if err := ctx.Err(); err != nil {
			return Candidate{}, false, err
		}

		if len(w.bucketQueue) == 0 {
			advanced, err := w.advanceHour(ctx)
			if err != nil {
				return Candidate{}, false, err
			}
			if !advanced {
				return Candidate{}, false, nil
			}
			continue
		}

		entry := w.bucketQueue[0]
		w.bucketQueue = w.bucketQueue[1:]

		bucketPath := path.Join(hourPath(w.basePath, w.radar, entry.hour), entry.bucket)
		entries, err := w.client.List(ctx, bucketPath)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return Candidate{}, false, fmt.Errorf("remote: list bucket %s: %w", bucketPath, err)
		}

		for _, e := range entries {
			if e.IsDir || !strings.HasSuffix(strings.ToLower(e.Name), strings.ToLower(w.ext)) {
				continue
			}
			w.pending = append(w.pending, Candidate{
				RemotePath: path.Join(bucketPath, e.Name),
				Filename:   e.Name,
			})
		}
	}
}

// advanceHour lists the bucket directories for the next hour and queues
// them in lexicographic (== temporal) order. It returns false when the
// cursor has passed the configured end, or "now" for an open-ended window.
func (w *Walker) advanceHour(ctx context.Context) (bool, error) {
	upper := time.Now().UTC()
	if w.end != nil && w.end.Before(upper) {
		upper = *w.end
	}
	if w.cursor.After(upper) {
		return false, nil
	}

	hourDir := hourPath(w.basePath, w.radar, w.cursor)
	entries, err := w.client.List(ctx, hourDir)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Future hour not yet published: tolerated, try the next one.
			w.cursor = w.cursor.Add(time.Hour)
			return true, nil
		}
		return false, fmt.Errorf("remote: list hour %s: %w", hourDir, err)
	}

	buckets := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			buckets = append(buckets, e.Name)
		}
	}
	sort.Strings(buckets)

	for _, b := range buckets {
		w.bucketQueue = append(w.bucketQueue, bucketEntry{hour: w.cursor, bucket: b})
	}

	w.cursor = w.cursor.Add(time.Hour)
	return true, nil
}

func hourPath(base, radar string, hour time.Time) string {
	return path.Join(base, radar,
		fmt.Sprintf("%04d", hour.Year()),
		fmt.Sprintf("%02d", hour.Month()),
		fmt.Sprintf("%02d", hour.Day()),
		fmt.Sprintf("%02d", hour.Hour()),
	)
}
