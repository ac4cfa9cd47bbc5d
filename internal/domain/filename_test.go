package domain

import (
	"testing"
	"time"
)

func TestParseFilename(t *testing.T) {
	got, err := ParseFilename("KABX_VCP21_1_REF_20260115T103045Z.bufr")
	if err != nil {
		t.Fatalf("ParseFilename returned error: %v", err)
	}
	want := ParsedFilename{
		Radar:        "KABX",
		VolumeCode:   "VCP21",
		VolumeNumber: "1",
		Field:        "REF",
		Observation:  time.Date(2026, 1, 15, 10, 30, 45, 0, time.UTC),
		Ext:          "bufr",
	}
	if got != want {
		t.Fatalf("ParseFilename = %+v, want %+v", got, want)
	}
}

func TestParseFilename_SameVolumeDifferentField(t *testing.T) {
	a, err := ParseFilename("KABX_VCP21_1_REF_20260115T103045Z.bufr")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseFilename("KABX_VCP21_1_VEL_20260115T103045Z.bufr")
	if err != nil {
		t.Fatal(err)
	}
	if a.VolumeID() != b.VolumeID() {
		t.Fatalf("expected equal volume identity regardless of field, got %v and %v", a.VolumeID(), b.VolumeID())
	}
}

func TestParseFilename_Invalid(t *testing.T) {
	cases := []string{
		"",
		"too_few_parts.bufr",
		"KABX_VCP21_notanumber_REF_20260115T103045Z.bufr",
		"KABX_VCP21_1_REF_not-a-time.bufr",
		"KABX__1_REF_20260115T103045Z.bufr",
	}
	for _, c := range cases {
		if _, err := ParseFilename(c); err == nil {
			t.Errorf("ParseFilename(%q) expected error, got nil", c)
		}
	}
}

func TestComputeComplete(t *testing.T) {
	expected := []string{"REF", "VEL", "SW"}
	if ComputeComplete(expected, []string{"REF", "VEL"}) {
		t.Fatal("expected incomplete set to report false")
	}
	if !ComputeComplete(expected, []string{"REF", "VEL", "SW", "ZDR"}) {
		t.Fatal("expected superset to report true")
	}
}

func TestVolumeID_String(t *testing.T) {
	id := VolumeID{
		Radar:        "KABX",
		VolumeCode:   "VCP21",
		VolumeNumber: "1",
		Observation:  time.Date(2026, 1, 15, 10, 30, 45, 0, time.UTC),
	}
	want := "KABX_VCP21_1_20260115T103045Z"
	if got := id.String(); got != want {
		t.Fatalf("VolumeID.String() = %q, want %q", got, want)
	}
}
