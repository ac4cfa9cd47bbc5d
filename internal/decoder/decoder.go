// Package decoder is the typed foreign-interface adapter around the legacy
// binary-format radar decoder (spec.md §6, §9 "a narrow, typed FFI adapter
// module whose only job is calling the legacy decoder"). Every other
// component in this repo depends on Decoder's typed return value, never on
// the external routine directly.
package decoder

import (
	"context"
	"time"
)

// Sweep is one elevation-angle scan's metadata, as reported by the legacy
// decoder's per-sweep table (spec.md §6 VolumeDict.info.meta_sweeps).
type Sweep struct {
	NRays      int
	NGates     int
	GateSize   float64 // meters
	GateOffset float64 // meters, start range of the first gate
	StartTime  time.Time
	EndTime    time.Time
	FixedAngle float64 // degrees
	PRT        float64 // seconds
	PulseWidth float64 // seconds
	Nyquist    float64 // m/s
	ScanRate   float64 // degrees/second
	Azimuth    []float64
	Elevation  []float64
}

// VolumeMeta carries the radar/volume-level metadata the decoder extracts
// alongside the raw sample data (spec.md §6 VolumeDict.info.meta_vol).
type VolumeMeta struct {
	Latitude       float64
	Longitude      float64
	AltitudeMeters float64
	Instrument     string
	Observation    time.Time
	Sweeps         []Sweep
}

// VolumeDict is the legacy decoder's complete output for one constituent
// file: a 2-D float array of shape (total_rays, gates) plus the metadata
// needed to place it on a common grid.
type VolumeDict struct {
	Data    [][]float32 // [ray][gate]
	Missing float32      // sentinel value marking a missing sample
	Meta    VolumeMeta
}

// NGates returns the gate count of the first sweep, used by radar.Align as
// the reference grid's gate count once the field with the outermost range
// has been picked as reference. A VolumeDict always has at least one sweep
// on success.
func (v *VolumeDict) NGates() int {
	if len(v.Meta.Sweeps) == 0 {
		return 0
	}
	return v.Meta.Sweeps[0].NGates
}

// OutermostRange returns start_range + gate_size*gate_count for the first
// sweep — the quantity spec.md §4.5 uses to pick the reference field among
// a volume's constituent files.
func (v *VolumeDict) OutermostRange() float64 {
	if len(v.Meta.Sweeps) == 0 {
		return 0
	}
	s := v.Meta.Sweeps[0]
	return s.GateOffset + s.GateSize*float64(s.NGates)
}

// Decoder is the capability the Converter needs from the legacy
// binary-format decoder: decode one file given a path to its runtime
// resources directory.
type Decoder interface {
	Decode(ctx context.Context, filePath, resourcesDir string) (*VolumeDict, error)
}
