// Package radar holds the canonical in-memory radar volume — the
// converter's synthesis target (spec.md §4.5) — and the alignment
// algorithm that reconciles independently-decoded sub-product fields onto
// a single common range grid before the volume is written to its output
// container.
package radar

import (
	"time"

	"github.com/jgmarti84/radarlib/internal/domain"
)

// Field is one named physical quantity's data, already aligned onto the
// volume's common (rays, gates) grid.
type Field struct {
	Name string
	Data [][]float32 // [ray][gate], missing cells hold MissingValue
}

// InstrumentParams carries the per-sweep instrument settings the decoder's
// metadata supplies, when it supplies them (spec.md §4.5).
type InstrumentParams struct {
	Nyquist    []float64 // m/s, one entry per sweep
	PulseWidth []float64 // seconds, one entry per sweep
	PRT        []float64 // seconds, one entry per sweep
	FixedAngle []float64 // degrees, one entry per sweep
}

// Volume is the canonical radar object: one logical structure built from
// every constituent field of a single scan volume, ready to be persisted
// to the output container format.
//
// Invariants (spec.md §4.5): every Field.Data has the same (rays, gates)
// shape; SweepStartRay/SweepEndRay are monotonic; RayTime is
// monotonically non-decreasing within a sweep.
type Volume struct {
	ID      domain.VolumeID
	Gates   int
	Range   []float64 // meters, one entry per gate, from the reference field
	Azimuth []float64 // degrees, one entry per ray
	Elevation []float64 // degrees, one entry per ray

	SweepStartRay []int
	SweepEndRay   []int
	RayTime       []time.Time

	Latitude       float64
	Longitude      float64
	AltitudeMeters float64
	Instrument     string

	Params InstrumentParams
	Fields []Field

	MissingValue float32
}

// TotalRays returns the ray count of the reference grid.
func (v *Volume) TotalRays() int {
	if len(v.Azimuth) != len(v.Elevation) {
		panic("radar: azimuth/elevation length mismatch")
	}
	return len(v.Azimuth)
}

// FieldNames returns the names of the volume's aligned fields, in the
// order they were attached.
func (v *Volume) FieldNames() []string {
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldByName returns the field with the given name, or false if absent.
// The Renderer uses this to tolerate volumes missing optional fields
// (spec.md §4.6 Incompleteness tolerance).
func (v *Volume) FieldByName(name string) (Field, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
