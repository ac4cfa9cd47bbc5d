package radar

import (
	"testing"
	"time"

	"github.com/jgmarti84/radarlib/internal/decoder"
	"github.com/jgmarti84/radarlib/internal/domain"
)

func makeVD(nGates int, nRays int, gateSize float64) *decoder.VolumeDict {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	data := make([][]float32, nRays)
	for i := range data {
		row := make([]float32, nGates)
		for g := range row {
			row[g] = float32(i*100 + g)
		}
		data[i] = row
	}
	return &decoder.VolumeDict{
		Data:    data,
		Missing: -999,
		Meta: decoder.VolumeMeta{
			Latitude:       34.5,
			Longitude:      -86.2,
			AltitudeMeters: 200,
			Instrument:     "WSR-88D",
			Observation:    start,
			Sweeps: []decoder.Sweep{
				{
					NRays: nRays, NGates: nGates, GateSize: gateSize, GateOffset: 0,
					StartTime: start, EndTime: start.Add(30 * time.Second),
					FixedAngle: 0.5, PRT: 0.0008, PulseWidth: 0.000001, Nyquist: 16,
					Azimuth: linspace(nRays),
				},
			},
		},
	}
}

func linspace(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * (360.0 / float64(n))
	}
	return out
}

func TestAlign_PicksWidestFieldAsReference(t *testing.T) {
	id := domain.VolumeID{Radar: "KTEST", VolumeCode: "1", VolumeNumber: "01"}
	fields := map[string]*decoder.VolumeDict{
		"reflectivity": makeVD(100, 360, 250),
		"velocity":     makeVD(50, 360, 250),
	}

	vol, err := Align(id, fields)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if vol.Gates != 100 {
		t.Fatalf("expected reference gate count 100, got %d", vol.Gates)
	}
	velField, ok := vol.FieldByName("velocity")
	if !ok {
		t.Fatal("expected velocity field present")
	}
	if len(velField.Data[0]) != 100 {
		t.Fatalf("expected velocity padded to 100 gates, got %d", len(velField.Data[0]))
	}
	if velField.Data[0][60] != vol.MissingValue {
		t.Fatalf("expected padded gate to hold missing sentinel, got %v", velField.Data[0][60])
	}
}

func TestAlign_RejectsMismatchedRayCount(t *testing.T) {
	id := domain.VolumeID{Radar: "KTEST", VolumeCode: "1", VolumeNumber: "01"}
	fields := map[string]*decoder.VolumeDict{
		"reflectivity": makeVD(100, 360, 250),
		"velocity":     makeVD(100, 180, 250),
	}

	_, err := Align(id, fields)
	if err == nil {
		t.Fatal("expected geometry mismatch error")
	}
	se, ok := err.(*domain.StageError)
	if !ok {
		t.Fatalf("expected *domain.StageError, got %T", err)
	}
	if se.Class != domain.ErrClassGeometryMismatch {
		t.Fatalf("expected GEOMETRY_MISMATCH, got %s", se.Class)
	}
}

func TestAlign_SingleFieldIsOwnReference(t *testing.T) {
	id := domain.VolumeID{Radar: "KTEST", VolumeCode: "1", VolumeNumber: "01"}
	fields := map[string]*decoder.VolumeDict{
		"reflectivity": makeVD(100, 360, 250),
	}

	vol, err := Align(id, fields)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(vol.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(vol.Fields))
	}
	if vol.TotalRays() != 360 {
		t.Fatalf("expected 360 rays, got %d", vol.TotalRays())
	}
	if len(vol.Range) != 100 {
		t.Fatalf("expected 100 range gates, got %d", len(vol.Range))
	}
}
