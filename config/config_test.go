package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

const minimalYAML = `ibovflow:
  name: "ibovflow"
  version: "1.0"
storage:
  backend: local
  local:
    root: extracted_raw
`

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("B3_PAGE_SIZE", "")
	t.Setenv("STORAGE_TYPE", "")

	path := writeTempConfig(t, minimalYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source.B3.Index != "IBOV" {
		t.Errorf("unexpected index default: %s", cfg.Source.B3.Index)
	}
	if cfg.Source.B3.PageSize != 1200 {
		t.Errorf("unexpected page size default: %d", cfg.Source.B3.PageSize)
	}
	if cfg.Source.B3.Timeout != 30*time.Second {
		t.Errorf("unexpected timeout default: %s", cfg.Source.B3.Timeout)
	}
	if cfg.Source.B3.Retry.MaxAttempts != 3 {
		t.Errorf("unexpected retry default: %d", cfg.Source.B3.Retry.MaxAttempts)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("B3_PAGE_SIZE", "100")
	t.Setenv("B3_INDEX", "SMLL")
	t.Setenv("B3_EXTRACT_ALL_PAGES", "true")
	t.Setenv("STORAGE_TYPE", "local")
	t.Setenv("LOCAL_ROOT", "/tmp/ibov")

	path := writeTempConfig(t, minimalYAML)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source.B3.PageSize != 100 {
		t.Errorf("page size override not applied: %d", cfg.Source.B3.PageSize)
	}
	if cfg.Source.B3.Index != "SMLL" {
		t.Errorf("index override not applied: %s", cfg.Source.B3.Index)
	}
	if !cfg.Source.B3.AllPages {
		t.Errorf("all pages override not applied")
	}
	if cfg.Storage.Local.Root != "/tmp/ibov" {
		t.Errorf("local root override not applied: %s", cfg.Storage.Local.Root)
	}
}

func TestLoadConfigMissingBucket(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "")
	t.Setenv("S3_BUCKET", "")

	path := writeTempConfig(t, `ibovflow:
  name: "ibovflow"
  version: "1.0"
storage:
  backend: s3
  s3:
    region: us-east-1
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	if !isValidS3Bucket("my-data-bucket") {
		t.Errorf("expected bucket name to be valid")
	}
	if isValidS3Bucket("Invalid_Bucket") {
		t.Errorf("expected uppercase/underscore name to be invalid")
	}
	if isValidS3Bucket("a..b") {
		t.Errorf("expected consecutive dots to be invalid")
	}
}
