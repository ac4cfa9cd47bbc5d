package renderer

import "image/color"

// stop is one control point of a piecewise-linear color ramp.
type stop struct {
	v float64
	c color.RGBA
}

// reflectivityRamp is a small NWS-style reflectivity color table: enough
// stops to make the rendered PNGs visually meaningful without pulling in a
// plotting library the corpus never uses (see DESIGN.md).
var reflectivityRamp = []stop{
	{-10, color.RGBA{0x30, 0x30, 0x30, 0xff}},
	{0, color.RGBA{0x04, 0x4b, 0x94, 0xff}},
	{10, color.RGBA{0x00, 0xa1, 0xe6, 0xff}},
	{20, color.RGBA{0x00, 0xc9, 0x5b, 0xff}},
	{30, color.RGBA{0xff, 0xea, 0x00, 0xff}},
	{40, color.RGBA{0xff, 0x8c, 0x00, 0xff}},
	{50, color.RGBA{0xe3, 0x1a, 0x1a, 0xff}},
	{60, color.RGBA{0xb0, 0x00, 0xb0, 0xff}},
	{70, color.RGBA{0xff, 0xff, 0xff, 0xff}},
}

// velocityRamp is a diverging blue-white-red ramp for radial velocity
// fields, centered on zero.
var velocityRamp = []stop{
	{-30, color.RGBA{0x00, 0x33, 0x99, 0xff}},
	{-10, color.RGBA{0x66, 0xcc, 0xff, 0xff}},
	{0, color.RGBA{0xff, 0xff, 0xff, 0xff}},
	{10, color.RGBA{0xff, 0x99, 0x66, 0xff}},
	{30, color.RGBA{0x99, 0x00, 0x00, 0xff}},
}

// missingColor marks a sample equal to the volume's missing-value
// sentinel: fully transparent so the background shows through.
var missingColor = color.RGBA{0, 0, 0, 0}

// rampFor selects a color ramp by field name; unrecognized fields fall
// back to the reflectivity ramp, which is a reasonable default for any
// unitless scalar.
func rampFor(field string) []stop {
	switch field {
	case "velocity", "VRAD", "VEL":
		return velocityRamp
	default:
		return reflectivityRamp
	}
}

// sample interpolates ramp at value v, clamping to the ramp's endpoints.
func sample(ramp []stop, v float64) color.RGBA {
	if v <= ramp[0].v {
		return ramp[0].c
	}
	last := ramp[len(ramp)-1]
	if v >= last.v {
		return last.c
	}
	for i := 1; i < len(ramp); i++ {
		if v <= ramp[i].v {
			lo, hi := ramp[i-1], ramp[i]
			t := (v - lo.v) / (hi.v - lo.v)
			return lerp(lo.c, hi.c, t)
		}
	}
	return last.c
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: 0xff,
	}
}
