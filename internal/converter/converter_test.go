package converter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jgmarti84/radarlib/internal/decoder"
	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/radar"
	"github.com/jgmarti84/radarlib/internal/store"
)

type fakeStore struct {
	store.StateStore
	volumes  map[string]domain.Volume
	claims   map[string]bool
	files    map[string]map[string]string
	failures map[string]*domain.StageError
	outputs  map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		volumes:  map[string]domain.Volume{},
		claims:   map[string]bool{},
		files:    map[string]map[string]string{},
		failures: map[string]*domain.StageError{},
		outputs:  map[string]string{},
	}
}

func (s *fakeStore) ListVolumesForProcessing(_ context.Context) ([]domain.Volume, error) {
	var out []domain.Volume
	for _, v := range s.volumes {
		out = append(out, v)
	}
	return out, nil
}

func (s *fakeStore) ClaimVolumeForProcessing(_ context.Context, id domain.VolumeID) (bool, error) {
	key := id.String()
	if s.claims[key] {
		return false, nil
	}
	s.claims[key] = true
	return true, nil
}

func (s *fakeStore) MarkVolumeProcessed(_ context.Context, id domain.VolumeID, outputPath string) error {
	s.outputs[id.String()] = outputPath
	return nil
}

func (s *fakeStore) MarkVolumeFailed(_ context.Context, id domain.VolumeID, stageErr *domain.StageError) error {
	s.failures[id.String()] = stageErr
	return nil
}

func (s *fakeStore) FilesForVolume(_ context.Context, id domain.VolumeID) (map[string]string, error) {
	return s.files[id.String()], nil
}

type fakeDecoder struct {
	vol *decoder.VolumeDict
	err error
}

func (d *fakeDecoder) Decode(_ context.Context, _, _ string) (*decoder.VolumeDict, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.vol, nil
}

type fakeWriter struct {
	written map[string]*radar.Volume
}

func (w *fakeWriter) Write(path string, vol *radar.Volume) error {
	if w.written == nil {
		w.written = map[string]*radar.Volume{}
	}
	w.written[path] = vol
	return nil
}

func makeVD() *decoder.VolumeDict {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	return &decoder.VolumeDict{
		Data:    [][]float32{{1, 2}, {3, 4}},
		Missing: -999,
		Meta: decoder.VolumeMeta{
			Observation: start,
			Sweeps: []decoder.Sweep{{
				NRays: 2, NGates: 2, GateSize: 250, GateOffset: 0,
				StartTime: start, EndTime: start.Add(time.Second),
				Azimuth: []float64{0, 180},
			}},
		},
	}
}

func TestConverter_ProcessesVolumeAndWritesContainer(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "RMA1_0315_01_DBZH_20260731T120000Z.BUFR")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	id := domain.VolumeID{Radar: "RMA1", VolumeCode: "0315", VolumeNumber: "01", Observation: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)}
	st := newFakeStore()
	st.volumes[id.String()] = domain.Volume{ID: id, ExpectedFields: []string{"DBZH"}, DownloadedFields: []string{"DBZH"}, IsComplete: true, Status: domain.VolumePending}
	st.files[id.String()] = map[string]string{"DBZH": filePath}

	writer := &fakeWriter{}
	c := New(st, st, &fakeDecoder{vol: makeVD()}, writer, nil, Config{OutputRoot: dir, MaxConcurrent: 2})

	if err := c.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	outPath, ok := st.outputs[id.String()]
	if !ok {
		t.Fatalf("expected volume to be marked processed")
	}
	if _, ok := writer.written[outPath]; !ok {
		t.Fatalf("expected container to be written at %s", outPath)
	}
	if _, failed := st.failures[id.String()]; failed {
		t.Fatalf("expected no failure, volume should have succeeded")
	}
}

func TestConverter_MissingFileMarksFailed(t *testing.T) {
	id := domain.VolumeID{Radar: "RMA1", VolumeCode: "0315", VolumeNumber: "01", Observation: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)}
	st := newFakeStore()
	st.volumes[id.String()] = domain.Volume{ID: id, ExpectedFields: []string{"DBZH"}, DownloadedFields: []string{"DBZH"}, IsComplete: true, Status: domain.VolumePending}
	st.files[id.String()] = map[string]string{"DBZH": "/nonexistent/path.BUFR"}

	c := New(st, st, &fakeDecoder{vol: makeVD()}, &fakeWriter{}, nil, Config{OutputRoot: t.TempDir(), MaxConcurrent: 1})

	if err := c.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	stageErr, failed := st.failures[id.String()]
	if !failed {
		t.Fatalf("expected volume to be marked failed")
	}
	if stageErr.Class != domain.ErrClassFileNotFound {
		t.Fatalf("expected FILE_NOT_FOUND, got %s", stageErr.Class)
	}
}

func TestOutputPath(t *testing.T) {
	id := domain.VolumeID{Radar: "RMA1", VolumeCode: "0315", VolumeNumber: "01", Observation: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	got := OutputPath("/out", id, "nc")
	want := "/out/RMA1/2025/01/01/RMA1_0315_01_20250101T120000Z.nc"
	if got != want {
		t.Fatalf("OutputPath = %q, want %q", got, want)
	}
}
