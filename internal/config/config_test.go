package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radar = "KABX"
	cfg.Remote.Host = "radar-ftp.example.gov"
	cfg.Expected = map[string]map[string][]string{"VCP21": {"1": {"REF", "VEL"}}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestDefaultConfig_MissingFieldsRejected(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty radar/remote/expected map")
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"radar":"KABX","remote":{"host":"radar-ftp.example.gov"},"expected_fields":{"VCP21":{"1":["REF"]}}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Radar != "KABX" {
		t.Fatalf("Radar = %q, want KABX", cfg.Radar)
	}
	if cfg.Remote.Host != "radar-ftp.example.gov" {
		t.Fatalf("Remote.Host = %q", cfg.Remote.Host)
	}
	// defaults preserved for fields not present in the overlay
	if cfg.Tuning.MaxConcurrentDownloads != DefaultConfig().Tuning.MaxConcurrentDownloads {
		t.Fatalf("expected default MaxConcurrentDownloads to survive overlay")
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "radar: KABX\nremote:\n  host: radar-ftp.example.gov\nexpected_fields:\n  VCP21:\n    \"1\":\n      - REF\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Radar != "KABX" {
		t.Fatalf("Radar = %q, want KABX", cfg.Radar)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("RADARLIB_RADAR", "KFWS")
	t.Setenv("RADARLIB_POLL_INTERVAL", "10s")
	t.Setenv("RADARLIB_VERIFY_CHECKSUMS", "false")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Radar != "KFWS" {
		t.Fatalf("Radar = %q, want KFWS", cfg.Radar)
	}
	if cfg.Tuning.PollInterval != 10*time.Second {
		t.Fatalf("PollInterval = %v, want 10s", cfg.Tuning.PollInterval)
	}
	if cfg.Tuning.VerifyChecksums {
		t.Fatal("expected VerifyChecksums to be overridden to false")
	}
}
