package renderer

import "github.com/jgmarti84/radarlib/internal/radar"

// colmaxFieldName is the derived field name Renderer adds when
// cfg.AddColmax is set.
const colmaxFieldName = "composite_reflectivity"

// sourceFieldsForColmax are tried in order; the first one present in the
// volume is used as the vertical-maximum source.
var sourceFieldsForColmax = []string{"reflectivity", "total_power"}

// azimuthBins is the resolution of the synthetic single-sweep grid colmax
// is rendered onto: one bin per whole degree.
const azimuthBins = 360

// computeColmax derives the column-maximum reflectivity field: for every
// one-degree azimuth bin, the greatest non-missing value at each gate
// across all of the volume's sweeps (spec.md §4.6 step 5, "optionally
// compute the vertical-maximum reflectivity derived field"). The result is
// a synthetic single-sweep (azimuthBins, gates) field, not aligned to the
// volume's native per-sweep ray grid, since a composite is inherently a
// flattening across elevations. It returns false if no usable source
// field is present.
func computeColmax(vol *radar.Volume) (radar.Field, bool) {
	var src *radar.Field
	for _, name := range sourceFieldsForColmax {
		if f, ok := vol.FieldByName(name); ok {
			src = &f
			break
		}
	}
	if src == nil {
		return radar.Field{}, false
	}

	gates := vol.Gates
	out := make([][]float32, azimuthBins)
	for i := range out {
		row := make([]float32, gates)
		for g := range row {
			row[g] = vol.MissingValue
		}
		out[i] = row
	}

	for ray, az := range vol.Azimuth {
		if ray >= len(src.Data) {
			break
		}
		bin := int(az) % azimuthBins
		if bin < 0 {
			bin += azimuthBins
		}
		srcRow := src.Data[ray]
		dstRow := out[bin]
		for g := 0; g < gates && g < len(srcRow); g++ {
			v := srcRow[g]
			if v == vol.MissingValue {
				continue
			}
			if dstRow[g] == vol.MissingValue || v > dstRow[g] {
				dstRow[g] = v
			}
		}
	}

	return radar.Field{Name: colmaxFieldName, Data: out}, true
}
