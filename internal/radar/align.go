package radar

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jgmarti84/radarlib/internal/decoder"
	"github.com/jgmarti84/radarlib/internal/domain"
)

// gateSizeTolerance bounds how far two fields' gate spacing may differ and
// still be considered the same grid (floating point noise from the legacy
// decoder's unit conversions, not a real geometry mismatch).
const gateSizeTolerance = 0.5 // meters

// Align reconciles one volume's independently-decoded constituent fields
// onto a single common range grid (spec.md §4.5).
//
// The field with the greatest outermost range (start_range +
// gate_size*gate_count) is chosen as the reference; every other field is
// padded with the missing sentinel out to the reference gate count, or
// truncated if it somehow extends past it. Fields whose sweep count, ray
// count, or gate size disagree with the reference fail the whole volume
// with a GEOMETRY_MISMATCH stage error, since there is no sound way to
// align data collected on an incompatible scan geometry.
func Align(id domain.VolumeID, fields map[string]*decoder.VolumeDict) (*Volume, error) {
	if len(fields) == 0 {
		return nil, domain.NewStageError(domain.ErrClassGeometryMismatch, "no constituent fields to align")
	}

	refName, ref := pickReference(fields)
	refGates := ref.NGates()
	refSweeps := len(ref.Meta.Sweeps)
	refRays := totalRays(ref)

	vol := &Volume{
		ID:             id,
		Gates:          refGates,
		Latitude:       ref.Meta.Latitude,
		Longitude:      ref.Meta.Longitude,
		AltitudeMeters: ref.Meta.AltitudeMeters,
		Instrument:     ref.Meta.Instrument,
		MissingValue:   ref.Missing,
	}
	vol.Range = rangeAxis(ref.Meta.Sweeps[0], refGates)
	vol.Azimuth, vol.Elevation, vol.RayTime, vol.SweepStartRay, vol.SweepEndRay = rayGeometry(ref.Meta.Sweeps)
	vol.Params = instrumentParams(ref.Meta.Sweeps)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vd := fields[name]
		if len(vd.Meta.Sweeps) != refSweeps {
			return nil, domain.NewStageError(domain.ErrClassGeometryMismatch,
				fmt.Sprintf("field %q has %d sweeps, reference field %q has %d", name, len(vd.Meta.Sweeps), refName, refSweeps))
		}
		if totalRays(vd) != refRays {
			return nil, domain.NewStageError(domain.ErrClassGeometryMismatch,
				fmt.Sprintf("field %q has %d rays, reference field %q has %d", name, totalRays(vd), refName, refRays))
		}
		if math.Abs(vd.Meta.Sweeps[0].GateSize-ref.Meta.Sweeps[0].GateSize) > gateSizeTolerance {
			return nil, domain.NewStageError(domain.ErrClassGeometryMismatch,
				fmt.Sprintf("field %q gate size %.2fm incompatible with reference field %q gate size %.2fm",
					name, vd.Meta.Sweeps[0].GateSize, refName, ref.Meta.Sweeps[0].GateSize))
		}

		vol.Fields = append(vol.Fields, Field{
			Name: name,
			Data: conform(vd.Data, refGates, vd.Missing, vol.MissingValue),
		})
	}

	return vol, nil
}

// pickReference returns the name and VolumeDict of the field with the
// greatest outermost range.
func pickReference(fields map[string]*decoder.VolumeDict) (string, *decoder.VolumeDict) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	bestName := names[0]
	best := fields[bestName]
	bestRange := best.OutermostRange()
	for _, name := range names[1:] {
		vd := fields[name]
		if r := vd.OutermostRange(); r > bestRange {
			bestName, best, bestRange = name, vd, r
		}
	}
	return bestName, best
}

func totalRays(vd *decoder.VolumeDict) int {
	n := 0
	for _, s := range vd.Meta.Sweeps {
		n += s.NRays
	}
	return n
}

func rangeAxis(s decoder.Sweep, gates int) []float64 {
	axis := make([]float64, gates)
	for g := 0; g < gates; g++ {
		axis[g] = s.GateOffset + s.GateSize*float64(g)
	}
	return axis
}

func rayGeometry(sweeps []decoder.Sweep) (azimuth, elevation []float64, rayTime []time.Time, start, end []int) {
	start = make([]int, len(sweeps))
	end = make([]int, len(sweeps))
	ray := 0
	for i, s := range sweeps {
		start[i] = ray
		azimuth = append(azimuth, s.Azimuth...)
		for range s.Azimuth {
			elevation = append(elevation, s.FixedAngle)
		}
		rayTime = append(rayTime, interpolateRayTimes(s)...)
		ray += s.NRays
		end[i] = ray - 1
	}
	return
}

// interpolateRayTimes spreads a sweep's start/end time evenly across its
// rays; the legacy decoder does not report a per-ray timestamp.
func interpolateRayTimes(s decoder.Sweep) []time.Time {
	times := make([]time.Time, s.NRays)
	if s.NRays == 0 {
		return times
	}
	if s.NRays == 1 {
		times[0] = s.StartTime
		return times
	}
	span := s.EndTime.Sub(s.StartTime)
	step := span / time.Duration(s.NRays-1)
	for i := range times {
		times[i] = s.StartTime.Add(step * time.Duration(i))
	}
	return times
}

func instrumentParams(sweeps []decoder.Sweep) InstrumentParams {
	p := InstrumentParams{}
	for _, s := range sweeps {
		p.Nyquist = append(p.Nyquist, s.Nyquist)
		p.PulseWidth = append(p.PulseWidth, s.PulseWidth)
		p.PRT = append(p.PRT, s.PRT)
		p.FixedAngle = append(p.FixedAngle, s.FixedAngle)
	}
	return p
}

// conform pads or truncates each ray of data to refGates columns, remapping
// the source's missing sentinel to dst.
func conform(data [][]float32, refGates int, srcMissing, dstMissing float32) [][]float32 {
	out := make([][]float32, len(data))
	for i, ray := range data {
		row := make([]float32, refGates)
		for g := 0; g < refGates; g++ {
			if g >= len(ray) {
				row[g] = dstMissing
				continue
			}
			if ray[g] == srcMissing {
				row[g] = dstMissing
				continue
			}
			row[g] = ray[g]
		}
		out[i] = row
	}
	return out
}
