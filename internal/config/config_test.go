package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if cfg.Agents.MaxDepth != want.Agents.MaxDepth {
		t.Errorf("MaxDepth = %d, want %d", cfg.Agents.MaxDepth, want.Agents.MaxDepth)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Defaults()
	cfg.Project = "demo"
	cfg.Agents.MaxConcurrent = 9

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Project != "demo" || got.Agents.MaxConcurrent != 9 {
		t.Errorf("got %+v", got)
	}

	if _, err := os.Stat(filepath.Join(dir, ".legio", "config.yaml")); err != nil {
		t.Errorf("expected config.yaml to exist: %v", err)
	}
}

func TestLookupEnvOverridesFile(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "warn"

	t.Setenv("LEGIO_LOG_LEVEL", "debug")

	res := Lookup(cfg, nil, "log_level")
	if res.Value != "debug" || res.Source != SourceEnv {
		t.Errorf("Lookup = %+v, want debug/env", res)
	}
}

func TestLookupFallsBackToDefault(t *testing.T) {
	cfg := Defaults()
	res := Lookup(cfg, nil, "log_level")
	if res.Source != SourceDefault || res.Value != "info" {
		t.Errorf("Lookup = %+v, want info/default", res)
	}
}
