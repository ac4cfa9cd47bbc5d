// Package container persists the canonical radar.Volume to, and reads it
// back from, a CF-Radial-like NetCDF file (spec.md §4.5/§6). It is the
// write-side mirror of the decoder package's foreign-interface adapter: a
// narrow Go wrapper around the cgo-backed NetCDF C library, with every
// caller depending on radar.Volume rather than on the library directly.
package container

import (
	"fmt"
	"time"
)

const timeUnitsLayout = "2006-01-02T15:04:05Z"

// timeUnits returns the CF "seconds since <epoch>" units string anchored at
// the volume's first ray.
func timeUnits(epoch time.Time) string {
	return fmt.Sprintf("seconds since %s", epoch.UTC().Format(timeUnitsLayout))
}

func secondsSince(epoch time.Time, times []time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = t.Sub(epoch).Seconds()
	}
	return out
}

func toInt32(ints []int) []int32 {
	out := make([]int32, len(ints))
	for i, v := range ints {
		out[i] = int32(v)
	}
	return out
}

func toIntSlice(ints []int32) []int {
	out := make([]int, len(ints))
	for i, v := range ints {
		out[i] = int(v)
	}
	return out
}

func flatten(data [][]float32) []float32 {
	if len(data) == 0 {
		return nil
	}
	gates := len(data[0])
	out := make([]float32, 0, len(data)*gates)
	for _, row := range data {
		out = append(out, row...)
	}
	return out
}

func unflatten(flat []float32, rays, gates int) [][]float32 {
	out := make([][]float32, rays)
	for i := 0; i < rays; i++ {
		start := i * gates
		end := start + gates
		if end > len(flat) {
			end = len(flat)
		}
		row := make([]float32, gates)
		copy(row, flat[start:end])
		out[i] = row
	}
	return out
}
