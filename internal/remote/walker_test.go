package remote

import (
	"context"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/jgmarti84/radarlib/internal/domain"
)

// memClient is an in-memory Client backed by a map of path -> entries, for
// exercising the Walker's traversal order without a real SFTP session.
type memClient struct {
	dirs  map[string][]DirEntry
	files map[string][]byte
}

func newMemClient() *memClient {
	return &memClient{dirs: map[string][]DirEntry{}, files: map[string][]byte{}}
}

func (m *memClient) List(_ context.Context, p string) ([]DirEntry, error) {
	entries, ok := m.dirs[p]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entries, nil
}

func (m *memClient) Open(_ context.Context, p string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (m *memClient) Close() error { return nil }

func (m *memClient) addFile(base, radar string, hour time.Time, bucket, filename string) {
	hourDir := hourPath(base, radar, hour)
	m.dirs[hourDir] = appendUnique(m.dirs[hourDir], DirEntry{Name: bucket, IsDir: true})
	bucketDir := path.Join(hourDir, bucket)
	m.dirs[bucketDir] = append(m.dirs[bucketDir], DirEntry{Name: filename, IsDir: false, Size: 1})
}

func appendUnique(entries []DirEntry, e DirEntry) []DirEntry {
	for _, existing := range entries {
		if existing.Name == e.Name {
			return entries
		}
	}
	return append(entries, e)
}

func TestWalker_OrderAndWindow(t *testing.T) {
	c := newMemClient()
	base := "/data"
	radar := "RMA1"
	h0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	h1 := h0.Add(time.Hour)

	c.addFile(base, radar, h0, "0200", "RMA1_0315_01_DBZH_20250101T120200Z.BUFR")
	c.addFile(base, radar, h0, "0100", "RMA1_0315_01_VRAD_20250101T120100Z.BUFR")
	c.addFile(base, radar, h1, "0000", "RMA1_0315_02_DBZH_20250101T130000Z.BUFR")

	end := h1
	w := NewWalker(c, base, radar, ".BUFR", h0, &end)

	var got []string
	for {
		cand, ok, err := w.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, cand.Filename)
	}

	want := []string{
		"RMA1_0315_01_VRAD_20250101T120100Z.BUFR",
		"RMA1_0315_01_DBZH_20250101T120200Z.BUFR",
		"RMA1_0315_02_DBZH_20250101T130000Z.BUFR",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalker_EmptyWindow(t *testing.T) {
	c := newMemClient()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start
	w := NewWalker(c, "/data", "RMA1", ".BUFR", start, &end)

	_, ok, err := w.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatal("expected zero candidates for a zero-width window")
	}
}

func TestWalker_ExtensionFilter(t *testing.T) {
	c := newMemClient()
	h0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.addFile("/data", "RMA1", h0, "0000", "RMA1_0315_01_DBZH_20250101T000000Z.BUFR")
	c.addFile("/data", "RMA1", h0, "0000", "RMA1_0315_01_DBZH_20250101T000000Z.txt")

	end := h0
	w := NewWalker(c, "/data", "RMA1", ".BUFR", h0, &end)

	var got []string
	for {
		cand, ok, err := w.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, cand.Filename)
	}
	if len(got) != 1 || !strings.HasSuffix(got[0], ".BUFR") {
		t.Fatalf("expected only .BUFR files, got %v", got)
	}
}
