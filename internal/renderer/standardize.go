package renderer

import "strings"

// canonicalFieldNames maps the vendor-specific field names the decoder
// emits (ODIM/BUFR conventions) onto the canonical short names the
// Renderer's plotting and QC code is written against (spec.md §4.6 step
// 4, "standardize field names to the canonical set").
var canonicalFieldNames = map[string]string{
	"DBZH": "reflectivity",
	"DBZV": "reflectivity_v",
	"TH":   "total_power",
	"TV":   "total_power_v",
	"VRAD": "velocity",
	"VRADH": "velocity",
	"WRAD": "spectrum_width",
	"ZDR":  "differential_reflectivity",
	"RHOHV": "cross_correlation_ratio",
	"PHIDP": "differential_phase",
	"KDP":  "specific_differential_phase",
}

// qcFieldFor names the field whose value gates another field's display:
// cross-correlation is the standard gate-quality mask for reflectivity and
// velocity products (spec.md §4.6 step 6, "a filtered variant where
// per-field quality-control masks have been applied").
var qcFieldFor = map[string]string{
	"reflectivity": "cross_correlation_ratio",
	"velocity":     "cross_correlation_ratio",
}

// standardizeName returns the canonical name for a decoder-reported field,
// or the name unchanged (uppercased for consistency) if it has no known
// mapping — unmapped fields are still plotted, just under their raw name.
func standardizeName(name string) string {
	if canon, ok := canonicalFieldNames[name]; ok {
		return canon
	}
	return strings.ToUpper(name)
}
