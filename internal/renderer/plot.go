package renderer

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/jgmarti84/radarlib/internal/radar"
)

// plotElevation rasterizes one sweep of field to a PNG at path: one pixel
// per (ray, gate) cell, ray on the vertical axis and gate on the
// horizontal axis, colored by rampFor(field.Name). When qc is non-nil,
// cells whose qc value falls below qcThreshold are rendered as missing
// regardless of the primary field's own value (spec.md §4.6 step 6,
// "a filtered variant where per-field quality-control masks have been
// applied").
func plotElevation(path string, vol *radar.Volume, field radar.Field, sweep int, qc *radar.Field, qcThreshold float64) error {
	startRay, endRay := sweepBounds(vol, field, sweep)
	if startRay < 0 {
		return fmt.Errorf("renderer: sweep %d out of range for field %q", sweep, field.Name)
	}

	rays := endRay - startRay + 1
	gates := len(field.Data[startRay])
	img := image.NewRGBA(image.Rect(0, 0, gates, rays))
	ramp := rampFor(field.Name)

	for r := 0; r < rays; r++ {
		row := field.Data[startRay+r]
		var qcRow []float32
		if qc != nil && startRay+r < len(qc.Data) {
			qcRow = qc.Data[startRay+r]
		}
		for g := 0; g < gates; g++ {
			v := row[g]
			if v == vol.MissingValue {
				img.Set(g, r, missingColor)
				continue
			}
			if qcRow != nil && g < len(qcRow) {
				qv := qcRow[g]
				if qv == vol.MissingValue || float64(qv) < qcThreshold {
					img.Set(g, r, missingColor)
					continue
				}
			}
			img.Set(g, r, sample(ramp, float64(v)))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("renderer: create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("renderer: encode %s: %w", path, err)
	}
	return nil
}

// sweepBounds returns the [start, end] ray index range for sweep within
// field's data, using the volume's sweep ray-index arrays. field.Data may
// be a synthetic single-sweep grid (e.g. the colmax composite), in which
// case sweep 0 covers the whole array.
func sweepBounds(vol *radar.Volume, field radar.Field, sweep int) (int, int) {
	if field.Name == colmaxFieldName {
		if sweep != 0 {
			return -1, -1
		}
		return 0, len(field.Data) - 1
	}
	if sweep < 0 || sweep >= len(vol.SweepStartRay) {
		return -1, -1
	}
	return vol.SweepStartRay[sweep], vol.SweepEndRay[sweep]
}

// sweepCount returns how many elevations field should be plotted for.
func sweepCount(vol *radar.Volume, field radar.Field) int {
	if field.Name == colmaxFieldName {
		return 1
	}
	return len(vol.SweepStartRay)
}
