package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_NAME", "job-sync")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_NAME", "jobs")
	t.Setenv("DB_USER", "jobs")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.App.HTTPPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.App.HTTPPort)
	}
	if cfg.Sync.StaleDays != 60 || cfg.Sync.ExpiryDays != 90 {
		t.Fatalf("unexpected lifecycle defaults: stale=%d expiry=%d", cfg.Sync.StaleDays, cfg.Sync.ExpiryDays)
	}
	if cfg.Sync.FullBudget != 5*time.Minute {
		t.Fatalf("unexpected full budget: %s", cfg.Sync.FullBudget)
	}
	if got := cfg.Sync.TopSources; len(got) != 3 || got[0] != "remotive" {
		t.Fatalf("unexpected top sources: %v", got)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Fatalf("unexpected redis addr: %s", cfg.Redis.Addr())
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("APP_NAME", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("DB_USER", "")

	_, err := Load()
	if !errors.Is(err, errMissingRequiredEnv) {
		t.Fatalf("expected errMissingRequiredEnv, got %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SYNC_FULL_BUDGET", "five minutes")
	t.Setenv("SYNC_STALE_DAYS", "-1")

	_, err := Load()
	if !errors.Is(err, errInvalidEnv) {
		t.Fatalf("expected errInvalidEnv, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SYNC_TOP_SOURCES", " Remotive , ,jobicy")
	t.Setenv("SYNC_INCREMENTAL_BUDGET", "20s")
	t.Setenv("CRON_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := cfg.Sync.TopSources; len(got) != 2 || got[0] != "remotive" || got[1] != "jobicy" {
		t.Fatalf("unexpected top sources: %v", got)
	}
	if cfg.Sync.IncrementalBudget != 20*time.Second {
		t.Fatalf("unexpected incremental budget: %s", cfg.Sync.IncrementalBudget)
	}
	if cfg.Trigger.Secret != "s3cret" {
		t.Fatalf("expected CRON_SECRET fallback, got %q", cfg.Trigger.Secret)
	}
}

func TestLoadEnvFiles_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sync.env")
	if err := os.WriteFile(path, []byte("JOBSYNC_TEST_FROM_FILE=loaded\nJOBSYNC_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("JOBSYNC_TEST_PRESET", "process")
	t.Cleanup(func() { _ = os.Unsetenv("JOBSYNC_TEST_FROM_FILE") })

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("JOBSYNC_TEST_FROM_FILE"); got != "loaded" {
		t.Fatalf("expected loaded, got %q", got)
	}
	if got := os.Getenv("JOBSYNC_TEST_PRESET"); got != "process" {
		t.Fatalf("existing variable overwritten: %q", got)
	}
}

func TestLoadEnvFiles_MissingFileIgnored(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}
