package domain

import "time"

// FileStatus is the terminal state of a fetched file.
type FileStatus string

const (
	FileCompleted FileStatus = "completed"
	FileFailed    FileStatus = "failed"
)

// FileRecord represents one remote artifact and its local materialization.
// Created by the Fetcher only after a full download and checksum
// verification; never mutated except to re-link a re-downloaded copy, which
// overwrites the prior row for the same key.
type FileRecord struct {
	Filename          string     `json:"filename"`
	RemotePath        string     `json:"remote_path"`
	LocalPath         string     `json:"local_path"`
	Size              int64      `json:"size"`
	Digest            string     `json:"digest"` // hex-encoded SHA-256
	Radar             string     `json:"radar"`
	Field             string     `json:"field"`
	VolumeCode        string     `json:"vol_code"`
	VolumeNumber      string     `json:"vol_num"`
	ObservationInstant time.Time `json:"observation_instant"`
	Status            FileStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}

// PartialDownload is transient retry state for an in-flight fetch. It is
// upserted on each retry attempt and deleted once the corresponding
// FileRecord is created; it never coexists with a completed FileRecord for
// the same key.
type PartialDownload struct {
	Filename        string    `json:"filename"`
	RemotePath       string    `json:"remote_path"`
	LocalPath        string    `json:"local_path"`
	BytesDownloaded  int64     `json:"bytes_downloaded"`
	TotalBytes       int64     `json:"total_bytes,omitempty"`
	AttemptCount     int       `json:"attempt_count"`
	LastAttempt      time.Time `json:"last_attempt"`
}

// VolumeID is the deterministic identity of a logical scan volume.
type VolumeID struct {
	Radar        string
	VolumeCode   string
	VolumeNumber string
	Observation  time.Time
}

// String renders the volume identity as a stable, sortable string suitable
// for use as a primary key and for log correlation.
func (v VolumeID) String() string {
	return v.Radar + "_" + v.VolumeCode + "_" + v.VolumeNumber + "_" + v.Observation.UTC().Format(filenameTimeLayout)
}

// VolumeStatus is the processing lifecycle of a Volume row. It advances
// monotonically except that the stuck-work recovery sweep resets a stuck
// Processing row to Pending. The sweep does not reset Failed rows.
type VolumeStatus string

const (
	VolumePending    VolumeStatus = "pending"
	VolumeProcessing VolumeStatus = "processing"
	VolumeCompleted  VolumeStatus = "completed"
	VolumeFailed     VolumeStatus = "failed"
)

// Volume is the logical grouping of files that together constitute one scan
// volume. ExpectedFields comes from configuration; DownloadedFields
// accumulates as constituent files are fetched; IsComplete flips true once
// DownloadedFields is a superset of ExpectedFields.
type Volume struct {
	ID                VolumeID
	ExpectedFields    []string
	DownloadedFields  []string
	IsComplete        bool
	Status            VolumeStatus
	OutputPath        string
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProductType names a kind of rendered visualization artifact.
type ProductType string

const (
	ProductImage   ProductType = "image"
	ProductGeoTIFF ProductType = "geotiff"
)

// ProductStatus is the processing lifecycle of a Product row.
type ProductStatus string

const (
	ProductPending    ProductStatus = "pending"
	ProductProcessing ProductStatus = "processing"
	ProductCompleted  ProductStatus = "completed"
	ProductFailed     ProductStatus = "failed"
)

// Product is one generated visualization artifact for one volume. At most
// one row exists per (VolumeID, ProductType) pair; it may only exist when a
// Volume row with Status=VolumeCompleted exists.
type Product struct {
	VolumeID     VolumeID
	ProductType  ProductType
	Status       ProductStatus
	GeneratedAt  time.Time
	ErrorType    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasField reports whether name is present in the downloaded field set.
func (v Volume) HasField(name string) bool {
	for _, f := range v.DownloadedFields {
		if f == name {
			return true
		}
	}
	return false
}

// ComputeComplete reports whether downloaded is a superset of expected.
func ComputeComplete(expected, downloaded []string) bool {
	have := make(map[string]struct{}, len(downloaded))
	for _, f := range downloaded {
		have[f] = struct{}{}
	}
	for _, f := range expected {
		if _, ok := have[f]; !ok {
			return false
		}
	}
	return true
}
