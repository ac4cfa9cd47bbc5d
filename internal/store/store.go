// Package store defines the transactional catalogue that lets the Fetcher,
// Converter and Renderer exchange work without direct coupling. Every
// mutation listed on StateStore is a single committed transaction; callers
// never observe a partially-applied state transition.
package store

import (
	"context"
	"time"

	"github.com/jgmarti84/radarlib/internal/domain"
)

// StateStore is the small set of atomic catalogue operations shared by all
// three workers and the stuck-work recovery sweep. Implementations must
// serialize conflicting transitions (two workers racing to claim the same
// volume) by performing the status check and the status write in the same
// transaction.
type StateStore interface {
	Close() error
	Ping(ctx context.Context) error

	// RecordCompletedFile persists file as completed and deletes any
	// partial-download row for the same filename, in one transaction.
	RecordCompletedFile(ctx context.Context, file domain.FileRecord) error

	// RecordPartial upserts partial-download retry state. It is a no-op
	// safety violation to call this for a filename that already has a
	// completed File row; implementations return an error in that case.
	RecordPartial(ctx context.Context, partial domain.PartialDownload) error

	// IsFileCompleted reports whether a File row with status=completed
	// exists for filename.
	IsFileCompleted(ctx context.Context, filename string) (bool, error)

	// LatestObservationInstant returns the maximum observation_instant
	// over completed File rows for radar, or the zero time and false if
	// none exist yet.
	LatestObservationInstant(ctx context.Context, radar string) (time.Time, bool, error)

	// FilesForVolume returns the local path of every completed File row
	// belonging to id, keyed by field name — the Converter's lookup from
	// a claimed volume to its constituent files on disk.
	FilesForVolume(ctx context.Context, id domain.VolumeID) (map[string]string, error)

	// UpsertVolume creates the Volume row for id with the given expected
	// field set if none exists. An existing row is left unchanged: neither
	// its expected nor its downloaded field set is updated.
	UpsertVolume(ctx context.Context, id domain.VolumeID, expectedFields []string) error

	// AddFieldToVolume adds field to the volume's downloaded set and
	// recomputes IsComplete. The volume row must already exist.
	AddFieldToVolume(ctx context.Context, id domain.VolumeID, field string) error

	// ListVolumesForProcessing returns pending volumes whose downloaded
	// field set is already complete, oldest observation first — the
	// Converter's candidate list for ClaimVolumeForProcessing.
	ListVolumesForProcessing(ctx context.Context) ([]domain.Volume, error)

	// ClaimVolumeForProcessing transitions a pending, complete volume to
	// processing. ok is true only for the caller that wins the race;
	// losers receive ok=false with a nil error.
	ClaimVolumeForProcessing(ctx context.Context, id domain.VolumeID) (ok bool, err error)

	// MarkVolumeProcessed transitions a processing volume to completed
	// and records the output container path.
	MarkVolumeProcessed(ctx context.Context, id domain.VolumeID, outputPath string) error

	// MarkVolumeFailed transitions a processing volume to failed and
	// records the error.
	MarkVolumeFailed(ctx context.Context, id domain.VolumeID, stageErr *domain.StageError) error

	// ListVolumesForRendering returns completed volumes that either have
	// no product row for productType, or whose product row is pending or
	// failed.
	ListVolumesForRendering(ctx context.Context, productType domain.ProductType) ([]domain.Volume, error)

	// ClaimProduct transitions a product row to processing, creating it
	// first if it does not yet exist. ok is true only for the caller that
	// wins the race.
	ClaimProduct(ctx context.Context, id domain.VolumeID, productType domain.ProductType) (ok bool, err error)

	// MarkProductStatus updates a product row's terminal status and, on
	// failure, its error class and message.
	MarkProductStatus(ctx context.Context, id domain.VolumeID, productType domain.ProductType, status domain.ProductStatus, stageErr *domain.StageError) error

	// ResetStuck transitions rows of the given entity class whose status
	// is processing and whose updated_at is older than olderThan back to
	// pending. It returns the number of rows affected.
	ResetStuck(ctx context.Context, entity Entity, olderThan time.Time) (int64, error)

	// Stats returns the per-entity-class counters the Supervisor exposes
	// through its polling statistics view.
	Stats(ctx context.Context) (Stats, error)
}

// Entity names a catalogue table that participates in the stuck-work
// recovery sweep.
type Entity string

const (
	EntityVolume  Entity = "volumes"
	EntityProduct Entity = "products"
)

// Stats is the aggregate snapshot the Supervisor polls for its statistics
// view: counts of pending/in-flight/completed/failed per entity class.
type Stats struct {
	FilesCompleted     int64
	PartialDownloads   int64
	VolumesPending     int64
	VolumesProcessing  int64
	VolumesCompleted   int64
	VolumesFailed      int64
	ProductsPending    int64
	ProductsProcessing int64
	ProductsCompleted  int64
	ProductsFailed     int64
}
