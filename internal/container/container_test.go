package container

import (
	"testing"
	"time"
)

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	data := [][]float32{
		{1, 2, 3},
		{4, 5, 6},
	}
	flat := flatten(data)
	if len(flat) != 6 {
		t.Fatalf("expected 6 flattened values, got %d", len(flat))
	}
	back := unflatten(flat, 2, 3)
	for i := range data {
		for g := range data[i] {
			if back[i][g] != data[i][g] {
				t.Fatalf("roundtrip mismatch at [%d][%d]: got %v want %v", i, g, back[i][g], data[i][g])
			}
		}
	}
}

func TestUnflattenShortSource(t *testing.T) {
	flat := []float32{1, 2, 3}
	back := unflatten(flat, 2, 3)
	if len(back) != 2 || len(back[1]) != 3 {
		t.Fatalf("expected a 2x3 result, got %dx%d", len(back), len(back[1]))
	}
	if back[1][2] != 0 {
		t.Fatalf("expected zero-value padding for missing source data, got %v", back[1][2])
	}
}

func TestSecondsSince(t *testing.T) {
	epoch := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	times := []time.Time{epoch, epoch.Add(10 * time.Second), epoch.Add(30 * time.Second)}
	secs := secondsSince(epoch, times)
	want := []float64{0, 10, 30}
	for i := range want {
		if secs[i] != want[i] {
			t.Fatalf("secondsSince[%d] = %v, want %v", i, secs[i], want[i])
		}
	}
}

func TestTimeUnits(t *testing.T) {
	epoch := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	got := timeUnits(epoch)
	want := "seconds since 2026-07-31T12:00:00Z"
	if got != want {
		t.Fatalf("timeUnits = %q, want %q", got, want)
	}
}

func TestToInt32Int(t *testing.T) {
	in := []int{0, 5, 359}
	out := toInt32(in)
	back := toIntSlice(out)
	for i := range in {
		if back[i] != in[i] {
			t.Fatalf("int32 roundtrip mismatch at %d: got %d want %d", i, back[i], in[i])
		}
	}
}
