package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("PROVIDERCHECK_TIMEOUT_SECONDS", "")
	t.Setenv("PROVIDERCHECK_CONCURRENCY", "")
	t.Setenv("PROVIDERCHECK_OUTPUT_MAX_RUNES", "")
	t.Setenv("PROVIDERCHECK_LOG_LEVEL", "")
	dir := t.TempDir()

	cfg, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ConfigDir != dir || cfg.DBPath != filepath.Join(dir, "providercheck.db") {
		t.Errorf("paths: %+v", cfg)
	}
	if cfg.Timeout() != DefaultTimeoutSeconds*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout())
	}
	if cfg.Concurrency != DefaultConcurrency || cfg.OutputMaxRunes != DefaultOutputMaxRunes {
		t.Errorf("defaults: %+v", cfg)
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROVIDERCHECK_CONFIG_DIR", dir)
	t.Setenv("PROVIDERCHECK_TIMEOUT_SECONDS", "5")
	t.Setenv("PROVIDERCHECK_CONCURRENCY", "not-a-number")
	t.Setenv("PROVIDERCHECK_OUTPUT_MAX_RUNES", "0")
	t.Setenv("PROVIDERCHECK_LOG_LEVEL", "debug")

	cfg, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ConfigDir != dir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, dir)
	}
	if cfg.TimeoutSeconds != 5 {
		t.Errorf("TimeoutSeconds = %d", cfg.TimeoutSeconds)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("invalid env should fall back to default, got %d", cfg.Concurrency)
	}
	if cfg.OutputMaxRunes != 0 || cfg.LogLevel != "debug" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestNew_FileWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROVIDERCHECK_CONCURRENCY", "8")
	t.Setenv("PROVIDERCHECK_TIMEOUT_SECONDS", "9")
	data := `{"concurrency": 2, "suite_path": "/suites/echo.yaml", "workspace_dir": "/work"}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("file should win: Concurrency = %d", cfg.Concurrency)
	}
	if cfg.TimeoutSeconds != 9 {
		t.Errorf("env should survive missing key: TimeoutSeconds = %d", cfg.TimeoutSeconds)
	}
	if cfg.SuitePath != "/suites/echo.yaml" || cfg.WorkspaceDir != "/work" {
		t.Errorf("file values: %+v", cfg)
	}
}

func TestNew_BadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Error("expected error for malformed config.json")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "providercheck")
	cfg, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("dir not created: %v", err)
	}
}
