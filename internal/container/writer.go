package container

import (
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/jgmarti84/radarlib/internal/radar"
)

// Writer persists radar.Volume objects to CF-Radial-like NetCDF files.
type Writer struct{}

// NewWriter constructs a Writer. It carries no state; every call opens and
// closes its own file handle, matching the decoder package's no-shared-handle
// boundary with foreign code.
func NewWriter() *Writer {
	return &Writer{}
}

// Write creates a new NetCDF file at path describing vol. Non-serializable
// metadata (in-process identifiers, store bookkeeping) never reaches this
// layer; only the fields radar.Volume exposes are written.
func (w *Writer) Write(path string, vol *radar.Volume) (err error) {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("container: create %s: %w", path, err)
	}
	defer func() {
		if cerr := ds.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("container: close %s: %w", path, cerr)
		}
	}()

	rays := vol.TotalRays()
	timeDim, err := ds.AddDim("time", uint64(rays))
	if err != nil {
		return fmt.Errorf("container: add time dim: %w", err)
	}
	rangeDim, err := ds.AddDim("range", uint64(vol.Gates))
	if err != nil {
		return fmt.Errorf("container: add range dim: %w", err)
	}
	sweepDim, err := ds.AddDim("sweep", uint64(len(vol.SweepStartRay)))
	if err != nil {
		return fmt.Errorf("container: add sweep dim: %w", err)
	}

	if err := w.writeCoordinates(ds, vol, timeDim, rangeDim, sweepDim); err != nil {
		return err
	}
	if err := w.writeFields(ds, vol, timeDim, rangeDim); err != nil {
		return err
	}
	if err := w.writeGlobalAttrs(ds, vol); err != nil {
		return err
	}
	return nil
}

func (w *Writer) writeCoordinates(ds netcdf.Dataset, vol *radar.Volume, timeDim, rangeDim, sweepDim netcdf.Dim) error {
	rangeVar, err := ds.AddVar("range", netcdf.DOUBLE, []netcdf.Dim{rangeDim})
	if err != nil {
		return fmt.Errorf("container: add range var: %w", err)
	}
	if err := rangeVar.WriteFloat64s(vol.Range); err != nil {
		return fmt.Errorf("container: write range: %w", err)
	}
	if err := rangeVar.Attr("units").WriteStr("meters"); err != nil {
		return fmt.Errorf("container: range units attr: %w", err)
	}

	azVar, err := ds.AddVar("azimuth", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return fmt.Errorf("container: add azimuth var: %w", err)
	}
	if err := azVar.WriteFloat64s(vol.Azimuth); err != nil {
		return fmt.Errorf("container: write azimuth: %w", err)
	}

	elVar, err := ds.AddVar("elevation", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return fmt.Errorf("container: add elevation var: %w", err)
	}
	if err := elVar.WriteFloat64s(vol.Elevation); err != nil {
		return fmt.Errorf("container: write elevation: %w", err)
	}

	var epoch = vol.RayTime[0]
	timeVar, err := ds.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return fmt.Errorf("container: add time var: %w", err)
	}
	if err := timeVar.WriteFloat64s(secondsSince(epoch, vol.RayTime)); err != nil {
		return fmt.Errorf("container: write time: %w", err)
	}
	if err := timeVar.Attr("units").WriteStr(timeUnits(epoch)); err != nil {
		return fmt.Errorf("container: time units attr: %w", err)
	}

	startVar, err := ds.AddVar("sweep_start_ray_index", netcdf.INT, []netcdf.Dim{sweepDim})
	if err != nil {
		return fmt.Errorf("container: add sweep_start_ray_index var: %w", err)
	}
	if err := startVar.WriteInt32s(toInt32(vol.SweepStartRay)); err != nil {
		return fmt.Errorf("container: write sweep_start_ray_index: %w", err)
	}

	endVar, err := ds.AddVar("sweep_end_ray_index", netcdf.INT, []netcdf.Dim{sweepDim})
	if err != nil {
		return fmt.Errorf("container: add sweep_end_ray_index var: %w", err)
	}
	if err := endVar.WriteInt32s(toInt32(vol.SweepEndRay)); err != nil {
		return fmt.Errorf("container: write sweep_end_ray_index: %w", err)
	}

	fixedVar, err := ds.AddVar("fixed_angle", netcdf.DOUBLE, []netcdf.Dim{sweepDim})
	if err != nil {
		return fmt.Errorf("container: add fixed_angle var: %w", err)
	}
	return fixedVar.WriteFloat64s(vol.Params.FixedAngle)
}

func (w *Writer) writeFields(ds netcdf.Dataset, vol *radar.Volume, timeDim, rangeDim netcdf.Dim) error {
	for _, f := range vol.Fields {
		v, err := ds.AddVar(f.Name, netcdf.FLOAT, []netcdf.Dim{timeDim, rangeDim})
		if err != nil {
			return fmt.Errorf("container: add field var %q: %w", f.Name, err)
		}
		if err := v.WriteFloat32s(flatten(f.Data)); err != nil {
			return fmt.Errorf("container: write field %q: %w", f.Name, err)
		}
		if err := v.Attr("missing_value").WriteFloat32s([]float32{vol.MissingValue}); err != nil {
			return fmt.Errorf("container: missing_value attr for %q: %w", f.Name, err)
		}
		if err := v.Attr("coordinates").WriteStr("time range"); err != nil {
			return fmt.Errorf("container: coordinates attr for %q: %w", f.Name, err)
		}
	}
	return nil
}

func (w *Writer) writeGlobalAttrs(ds netcdf.Dataset, vol *radar.Volume) error {
	attrs := []struct {
		name string
		val  string
	}{
		{"Conventions", "CF-Radial-like"},
		{"instrument_name", vol.Instrument},
		{"platform", vol.ID.Radar},
		{"volume_code", vol.ID.VolumeCode},
		{"volume_number", vol.ID.VolumeNumber},
		{"observation_instant", vol.ID.Observation.UTC().Format(timeUnitsLayout)},
	}
	for _, a := range attrs {
		if err := ds.Attr(a.name).WriteStr(a.val); err != nil {
			return fmt.Errorf("container: global attr %s: %w", a.name, err)
		}
	}
	if err := ds.Attr("latitude").WriteFloat64s([]float64{vol.Latitude}); err != nil {
		return fmt.Errorf("container: latitude attr: %w", err)
	}
	if err := ds.Attr("longitude").WriteFloat64s([]float64{vol.Longitude}); err != nil {
		return fmt.Errorf("container: longitude attr: %w", err)
	}
	return ds.Attr("altitude").WriteFloat64s([]float64{vol.AltitudeMeters})
}
