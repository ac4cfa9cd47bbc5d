package renderer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/radar"
	"github.com/jgmarti84/radarlib/internal/store"
)

type fakeStore struct {
	store.StateStore
	candidates []domain.Volume
	claimed    map[string]bool
	statuses   map[string]domain.ProductStatus
	errs       map[string]*domain.StageError
}

func newFakeStore() *fakeStore {
	return &fakeStore{claimed: map[string]bool{}, statuses: map[string]domain.ProductStatus{}, errs: map[string]*domain.StageError{}}
}

func key(id domain.VolumeID, pt domain.ProductType) string { return id.String() + "/" + string(pt) }

func (s *fakeStore) ListVolumesForRendering(_ context.Context, _ domain.ProductType) ([]domain.Volume, error) {
	return s.candidates, nil
}

func (s *fakeStore) ClaimProduct(_ context.Context, id domain.VolumeID, pt domain.ProductType) (bool, error) {
	k := key(id, pt)
	if s.claimed[k] {
		return false, nil
	}
	s.claimed[k] = true
	return true, nil
}

func (s *fakeStore) MarkProductStatus(_ context.Context, id domain.VolumeID, pt domain.ProductType, status domain.ProductStatus, stageErr *domain.StageError) error {
	k := key(id, pt)
	s.statuses[k] = status
	s.errs[k] = stageErr
	return nil
}

type fakeReader struct {
	vol *radar.Volume
	err error
}

func (r *fakeReader) Read(_ string) (*radar.Volume, error) {
	return r.vol, r.err
}

func testVolume() *radar.Volume {
	return &radar.Volume{
		Gates:         2,
		Range:         []float64{0, 250},
		Azimuth:       []float64{0, 90, 180, 270},
		Elevation:     []float64{0.5, 0.5, 1.5, 1.5},
		SweepStartRay: []int{0, 2},
		SweepEndRay:   []int{1, 3},
		MissingValue:  -999,
		Fields: []radar.Field{
			{Name: "DBZH", Data: [][]float32{{10, 20}, {15, -999}, {30, 40}, {5, 6}}},
		},
	}
}

func TestRenderer_RendersPNGPerElevation(t *testing.T) {
	out := t.TempDir()
	id := domain.VolumeID{Radar: "RMA1", VolumeCode: "0315", VolumeNumber: "01", Observation: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)}

	st := newFakeStore()
	st.candidates = []domain.Volume{{ID: id, Status: domain.VolumeCompleted, OutputPath: mustContainerFile(t, out)}}

	r := New(st, &fakeReader{vol: testVolume()}, nil, Config{ProductRoot: out, ProductType: domain.ProductImage})

	if err := r.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	k := key(id, domain.ProductImage)
	if st.statuses[k] != domain.ProductCompleted {
		t.Fatalf("expected product completed, got %v (err=%v)", st.statuses[k], st.errs[k])
	}

	dir := filepath.Join(out, "RMA1", "2026", "07", "31")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 PNGs (one per elevation), got %d", len(entries))
	}
}

func TestRenderer_MissingContainerMarksFailed(t *testing.T) {
	id := domain.VolumeID{Radar: "RMA1", VolumeCode: "0315", VolumeNumber: "01", Observation: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)}
	st := newFakeStore()
	st.candidates = []domain.Volume{{ID: id, Status: domain.VolumeCompleted, OutputPath: "/nonexistent.nc"}}

	r := New(st, &fakeReader{vol: testVolume()}, nil, Config{ProductRoot: t.TempDir(), ProductType: domain.ProductImage})
	if err := r.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	k := key(id, domain.ProductImage)
	if st.statuses[k] != domain.ProductFailed {
		t.Fatalf("expected product failed, got %v", st.statuses[k])
	}
	if st.errs[k].Class != domain.ErrClassFileNotFound {
		t.Fatalf("expected FILE_NOT_FOUND, got %s", st.errs[k].Class)
	}
}

func TestComputeColmax(t *testing.T) {
	vol := testVolume()
	vol.Fields[0].Name = "reflectivity"
	f, ok := computeColmax(vol)
	if !ok {
		t.Fatal("expected colmax to be computed")
	}
	if f.Name != colmaxFieldName {
		t.Fatalf("expected name %s, got %s", colmaxFieldName, f.Name)
	}
	if len(f.Data) != azimuthBins {
		t.Fatalf("expected %d azimuth bins, got %d", azimuthBins, len(f.Data))
	}
	if f.Data[0][0] != 10 {
		t.Fatalf("expected bin 0 gate 0 = 10, got %v", f.Data[0][0])
	}
}

// mustContainerFile creates an empty placeholder file standing in for a
// container path; the fakeReader never actually parses it, only
// render()'s os.Stat existence check looks at the path.
func mustContainerFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "container.nc")
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
