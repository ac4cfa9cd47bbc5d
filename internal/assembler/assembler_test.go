package assembler

import (
	"context"
	"testing"
	"time"

	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/store"
)

type fakeStore struct {
	store.StateStore
	upserted map[string][]string
	fields   map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserted: map[string][]string{}, fields: map[string][]string{}}
}

func (f *fakeStore) UpsertVolume(_ context.Context, id domain.VolumeID, expected []string) error {
	if _, ok := f.upserted[id.String()]; !ok {
		f.upserted[id.String()] = expected
	}
	return nil
}

func (f *fakeStore) AddFieldToVolume(_ context.Context, id domain.VolumeID, field string) error {
	f.fields[id.String()] = append(f.fields[id.String()], field)
	return nil
}

func TestAssembler_OnFileCompleted(t *testing.T) {
	fs := newFakeStore()
	expected := ExpectedFieldsMap{"0315": {"01": {"DBZH", "VRAD"}}}
	a := New(fs, expected, nil)

	parsed := domain.ParsedFilename{
		Radar: "RMA1", VolumeCode: "0315", VolumeNumber: "01", Field: "DBZH",
		Observation: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := a.OnFileCompleted(context.Background(), parsed); err != nil {
		t.Fatalf("OnFileCompleted: %v", err)
	}

	id := parsed.VolumeID()
	if got := fs.upserted[id.String()]; len(got) != 2 {
		t.Fatalf("expected expected-fields upserted, got %v", got)
	}
	if got := fs.fields[id.String()]; len(got) != 1 || got[0] != "DBZH" {
		t.Fatalf("expected field DBZH added, got %v", got)
	}
}

func TestAssembler_UnknownVolume(t *testing.T) {
	fs := newFakeStore()
	a := New(fs, ExpectedFieldsMap{}, nil)

	parsed := domain.ParsedFilename{
		Radar: "RMA1", VolumeCode: "9999", VolumeNumber: "01", Field: "DBZH",
		Observation: time.Now().UTC(),
	}
	if err := a.OnFileCompleted(context.Background(), parsed); err == nil {
		t.Fatal("expected error for unconfigured volume_code/volume_number pair")
	}
}
