package fetcher

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/jgmarti84/radarlib/internal/assembler"
	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/remote"
	"github.com/jgmarti84/radarlib/internal/store"
)

type fakeClient struct {
	dirs  map[string][]remote.DirEntry
	files map[string][]byte
}

func (c *fakeClient) List(_ context.Context, p string) ([]remote.DirEntry, error) {
	e, ok := c.dirs[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (c *fakeClient) Open(_ context.Context, p string) (io.ReadCloser, error) {
	data, ok := c.files[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeClient) Close() error { return nil }

type fakeStore struct {
	store.StateStore
	completed map[string]bool
	recorded  []domain.FileRecord
	partials  []domain.PartialDownload
}

func newFakeStore() *fakeStore {
	return &fakeStore{completed: map[string]bool{}}
}

func (s *fakeStore) IsFileCompleted(_ context.Context, filename string) (bool, error) {
	return s.completed[filename], nil
}

func (s *fakeStore) LatestObservationInstant(_ context.Context, _ string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (s *fakeStore) RecordCompletedFile(_ context.Context, f domain.FileRecord) error {
	s.completed[f.Filename] = true
	s.recorded = append(s.recorded, f)
	return nil
}

func (s *fakeStore) RecordPartial(_ context.Context, p domain.PartialDownload) error {
	s.partials = append(s.partials, p)
	return nil
}

func (s *fakeStore) UpsertVolume(_ context.Context, _ domain.VolumeID, _ []string) error { return nil }
func (s *fakeStore) AddFieldToVolume(_ context.Context, _ domain.VolumeID, _ string) error {
	return nil
}

func TestFetcher_DownloadsAndSkipsCompleted(t *testing.T) {
	dir := t.TempDir()
	base := "/remote"
	radar := "RMA1"
	hour := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	filename := "RMA1_0315_01_DBZH_20250101T120000Z.BUFR"

	client := &fakeClient{
		dirs:  map[string][]remote.DirEntry{},
		files: map[string][]byte{},
	}
	hourDir := "/remote/RMA1/2025/01/01/12"
	client.dirs[hourDir] = []remote.DirEntry{{Name: "0000", IsDir: true}}
	bucketDir := hourDir + "/0000"
	client.dirs[bucketDir] = []remote.DirEntry{{Name: filename, IsDir: false, Size: 4}}
	client.files[bucketDir+"/"+filename] = []byte("data")

	st := newFakeStore()
	asm := assembler.New(st, assembler.ExpectedFieldsMap{"0315": {"01": {"DBZH"}}}, nil)

	end := hour
	f := New(client, st, asm, Config{
		Radar:           radar,
		RawDownloadRoot: dir,
		BasePath:        base,
		Extension:       ".BUFR",
		WindowStart:     hour,
		WindowEnd:       &end,
	})

	if err := f.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !st.completed[filename] {
		t.Fatalf("expected %s to be recorded completed", filename)
	}
	if _, err := os.Stat(dir + "/" + filename); err != nil {
		t.Fatalf("expected local file to exist: %v", err)
	}

	// Second sweep: the file is already completed, no new record.
	st.recorded = nil
	if err := f.sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(st.recorded) != 0 {
		t.Fatalf("expected zero new records on resumed sweep, got %d", len(st.recorded))
	}
}
