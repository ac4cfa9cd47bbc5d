package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsedFilename is the identity information recovered from a radar file's
// name. The filename layout is
// RADAR_VOLCODE_VOLNUM_FIELD_YYYYMMDDTHHMMSSZ.ext
type ParsedFilename struct {
	Radar        string
	VolumeCode   string
	VolumeNumber string
	Field        string
	Observation  time.Time
	Ext          string
}

// VolumeID returns the identity quadruple that groups this file with its
// siblings into a single volume. The field is deliberately excluded.
func (p ParsedFilename) VolumeID() VolumeID {
	return VolumeID{
		Radar:        p.Radar,
		VolumeCode:   p.VolumeCode,
		VolumeNumber: p.VolumeNumber,
		Observation:  p.Observation,
	}
}

const filenameTimeLayout = "20060102T150405Z"

// ParseFilename recovers radar/volume/field identity from a filename of the
// form RADAR_VOLCODE_VOLNUM_FIELD_YYYYMMDDTHHMMSSZ.ext. It does not consult
// the store or the filesystem; it is a pure function over the string.
func ParseFilename(name string) (ParsedFilename, error) {
	base := name
	ext := ""
	if idx := strings.LastIndexByte(base, '.'); idx >= 0 {
		ext = base[idx+1:]
		base = base[:idx]
	}

	parts := strings.Split(base, "_")
	if len(parts) != 5 {
		return ParsedFilename{}, fmt.Errorf("domain: filename %q: expected 5 underscore-delimited fields, got %d", name, len(parts))
	}

	radar, volCode, volNum, field, stamp := parts[0], parts[1], parts[2], parts[3], parts[4]
	if radar == "" || volCode == "" || volNum == "" || field == "" {
		return ParsedFilename{}, fmt.Errorf("domain: filename %q: empty identity component", name)
	}
	if _, err := strconv.Atoi(volNum); err != nil {
		return ParsedFilename{}, fmt.Errorf("domain: filename %q: volume number %q is not numeric: %w", name, volNum, err)
	}

	obs, err := time.Parse(filenameTimeLayout, stamp)
	if err != nil {
		return ParsedFilename{}, fmt.Errorf("domain: filename %q: observation instant %q: %w", name, stamp, err)
	}

	return ParsedFilename{
		Radar:        radar,
		VolumeCode:   volCode,
		VolumeNumber: volNum,
		Field:        field,
		Observation:  obs.UTC(),
		Ext:          ext,
	}, nil
}
