// Package assembler translates the flat stream of completed File records
// into Volume records (spec.md §4.4). It has no polling loop of its own:
// the Fetcher calls OnFileCompleted synchronously, in-process, right after
// each RecordCompletedFile commits, since the trigger is a direct call
// rather than a cross-process queue.
package assembler

import (
	"context"
	"fmt"

	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/queue"
	"github.com/jgmarti84/radarlib/internal/store"
)

// ExpectedFieldsMap mirrors the configuration-declared volume expectation
// map: volume_code -> volume_number -> ordered field list.
type ExpectedFieldsMap map[string]map[string][]string

// Lookup returns the expected field set for (volCode, volNum), or false if
// the configuration does not declare that volume.
func (m ExpectedFieldsMap) Lookup(volCode, volNum string) ([]string, bool) {
	byNum, ok := m[volCode]
	if !ok {
		return nil, false
	}
	fields, ok := byNum[volNum]
	return fields, ok
}

// Assembler upserts a Volume row and adds the newly-downloaded field to it
// whenever a File record is committed.
type Assembler struct {
	store    store.StateStore
	expected ExpectedFieldsMap
	notifier queue.Notifier
}

// New constructs an Assembler over expected, the configuration's volume
// expectation map. notifier wakes the Converter's poller immediately after
// a field lands instead of waiting out its poll_interval; a nil notifier
// falls back to a no-op (pure polling).
func New(st store.StateStore, expected ExpectedFieldsMap, notifier queue.Notifier) *Assembler {
	if notifier == nil {
		notifier = queue.NewNoopNotifier()
	}
	return &Assembler{store: st, expected: expected, notifier: notifier}
}

// OnFileCompleted is invoked once per successfully fetched file. It
// computes the file's volume identity, ensures the Volume row exists with
// the configured expected set, and adds the file's field to the
// downloaded set. The store recomputes IsComplete internally.
//
// A file whose (volume_code, volume_number) has no entry in the expected
// map is a configuration error — spec.md's Programmer/config error class —
// and is reported rather than silently dropped or silently accepted as
// always-complete.
func (a *Assembler) OnFileCompleted(ctx context.Context, parsed domain.ParsedFilename) error {
	expected, ok := a.expected.Lookup(parsed.VolumeCode, parsed.VolumeNumber)
	if !ok {
		return fmt.Errorf("assembler: %w: no expected field set configured for volume_code=%s volume_number=%s (file %s)",
			domain.ErrConfig, parsed.VolumeCode, parsed.VolumeNumber, parsed.Field)
	}

	id := parsed.VolumeID()
	if err := a.store.UpsertVolume(ctx, id, expected); err != nil {
		return fmt.Errorf("assembler: upsert volume %s: %w", id, err)
	}
	if err := a.store.AddFieldToVolume(ctx, id, parsed.Field); err != nil {
		return fmt.Errorf("assembler: add field %s to volume %s: %w", parsed.Field, id, err)
	}

	if err := a.notifier.Notify(ctx, queue.QueueVolume); err != nil {
		logging.Op().Warn("assembler notify failed", "volume_id", id, "error", err)
	}
	return nil
}
