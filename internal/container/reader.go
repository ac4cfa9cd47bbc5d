package container

import (
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/jgmarti84/radarlib/internal/radar"
)

// Reader reads back radar.Volume objects previously persisted by Writer.
// Used by the Renderer, which never needs the decoder's intermediate
// VolumeDict representation, only the aligned canonical volume.
type Reader struct{}

// NewReader constructs a Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read opens the NetCDF file at path and reconstructs the radar.Volume it
// describes, including every field variable beyond the fixed coordinate set.
// Per-ray times, fixed angles and the observation instant are not read
// back into the returned Volume.
func (r *Reader) Read(path string) (vol *radar.Volume, err error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", path, err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("container: close %s: %w", path, cerr)
		}
	}()

	vol = &radar.Volume{}

	rangeVar, err := ds.Var("range")
	if err != nil {
		return nil, fmt.Errorf("container: missing range var: %w", err)
	}
	gates, err := varLen(rangeVar)
	if err != nil {
		return nil, err
	}
	vol.Range = make([]float64, gates)
	if err := rangeVar.ReadFloat64s(vol.Range); err != nil {
		return nil, fmt.Errorf("container: read range: %w", err)
	}
	vol.Gates = int(gates)

	azVar, err := ds.Var("azimuth")
	if err != nil {
		return nil, fmt.Errorf("container: missing azimuth var: %w", err)
	}
	rays, err := varLen(azVar)
	if err != nil {
		return nil, err
	}
	vol.Azimuth = make([]float64, rays)
	if err := azVar.ReadFloat64s(vol.Azimuth); err != nil {
		return nil, fmt.Errorf("container: read azimuth: %w", err)
	}

	elVar, err := ds.Var("elevation")
	if err != nil {
		return nil, fmt.Errorf("container: missing elevation var: %w", err)
	}
	vol.Elevation = make([]float64, rays)
	if err := elVar.ReadFloat64s(vol.Elevation); err != nil {
		return nil, fmt.Errorf("container: read elevation: %w", err)
	}

	startVar, err := ds.Var("sweep_start_ray_index")
	if err != nil {
		return nil, fmt.Errorf("container: missing sweep_start_ray_index var: %w", err)
	}
	sweeps, err := varLen(startVar)
	if err != nil {
		return nil, err
	}
	startRaw := make([]int32, sweeps)
	if err := startVar.ReadInt32s(startRaw); err != nil {
		return nil, fmt.Errorf("container: read sweep_start_ray_index: %w", err)
	}
	vol.SweepStartRay = toIntSlice(startRaw)

	endVar, err := ds.Var("sweep_end_ray_index")
	if err != nil {
		return nil, fmt.Errorf("container: missing sweep_end_ray_index var: %w", err)
	}
	endRaw := make([]int32, sweeps)
	if err := endVar.ReadInt32s(endRaw); err != nil {
		return nil, fmt.Errorf("container: read sweep_end_ray_index: %w", err)
	}
	vol.SweepEndRay = toIntSlice(endRaw)

	if instrument, err := ds.Attr("instrument_name").ReadStr(); err == nil {
		vol.Instrument = instrument
	}
	if radarName, err := ds.Attr("platform").ReadStr(); err == nil {
		vol.ID.Radar = radarName
	}
	if volCode, err := ds.Attr("volume_code").ReadStr(); err == nil {
		vol.ID.VolumeCode = volCode
	}
	if volNum, err := ds.Attr("volume_number").ReadStr(); err == nil {
		vol.ID.VolumeNumber = volNum
	}

	lat := make([]float64, 1)
	if err := ds.Attr("latitude").ReadFloat64s(lat); err == nil {
		vol.Latitude = lat[0]
	}
	lon := make([]float64, 1)
	if err := ds.Attr("longitude").ReadFloat64s(lon); err == nil {
		vol.Longitude = lon[0]
	}
	alt := make([]float64, 1)
	if err := ds.Attr("altitude").ReadFloat64s(alt); err == nil {
		vol.AltitudeMeters = alt[0]
	}

	names, err := ds.VarNames()
	if err != nil {
		return nil, fmt.Errorf("container: list vars: %w", err)
	}
	coordVars := map[string]bool{
		"range": true, "azimuth": true, "elevation": true, "time": true,
		"sweep_start_ray_index": true, "sweep_end_ray_index": true, "fixed_angle": true,
	}
	for _, name := range names {
		if coordVars[name] {
			continue
		}
		v, err := ds.Var(name)
		if err != nil {
			return nil, fmt.Errorf("container: field var %q: %w", name, err)
		}
		flat := make([]float32, int(rays)*int(gates))
		if err := v.ReadFloat32s(flat); err != nil {
			return nil, fmt.Errorf("container: read field %q: %w", name, err)
		}
		missing := make([]float32, 1)
		if err := v.Attr("missing_value").ReadFloat32s(missing); err == nil {
			vol.MissingValue = missing[0]
		}
		vol.Fields = append(vol.Fields, radar.Field{Name: name, Data: unflatten(flat, int(rays), int(gates))})
	}

	return vol, nil
}

func varLen(v netcdf.Var) (uint64, error) {
	dims, err := v.Dims()
	if err != nil {
		return 0, fmt.Errorf("container: var dims: %w", err)
	}
	if len(dims) == 0 {
		return 0, fmt.Errorf("container: variable has no dimensions")
	}
	return dims[len(dims)-1].Len()
}
