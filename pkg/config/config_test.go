package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Ledger.Capacity != 20 {
		t.Errorf("expected ledger capacity 20, got %d", cfg.Ledger.Capacity)
	}
	if cfg.Play() != nil {
		t.Error("expected no infinite-play override by default")
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
catalog_path: goals.yaml
ledger:
  capacity: 5
infinite_play:
  crossover_fraction: 2
  easy_increment: 3
  hard_increment: 7
strict: true
seed: 42
scoring:
  timeout: 250ms
telemetry:
  logging:
    level: debug
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if cfg.CatalogPath != "goals.yaml" {
		t.Errorf("expected catalog path goals.yaml, got %s", cfg.CatalogPath)
	}
	if cfg.Ledger.Capacity != 5 {
		t.Errorf("expected capacity 5, got %d", cfg.Ledger.Capacity)
	}
	if !cfg.Strict || cfg.Seed != 42 {
		t.Errorf("expected strict with seed 42, got strict=%v seed=%d", cfg.Strict, cfg.Seed)
	}
	if cfg.Scoring.Timeout != 250*time.Millisecond {
		t.Errorf("expected scoring timeout 250ms, got %v", cfg.Scoring.Timeout)
	}
	if cfg.Database.Path != "colony.db" {
		t.Errorf("expected default database path to survive, got %s", cfg.Database.Path)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("expected default log format to survive, got %s", cfg.Telemetry.Logging.Format)
	}

	play := cfg.Play()
	if play == nil {
		t.Fatal("expected infinite-play override")
	}
	if play.CrossoverFraction != 2 || play.EasyIncrement != 3 || play.HardIncrement != 7 {
		t.Errorf("unexpected infinite-play override: %+v", *play)
	}
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("failed to parse empty config: %v", err)
	}
	if cfg.CatalogPath != "catalog.yaml" {
		t.Errorf("expected default catalog path, got %s", cfg.CatalogPath)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown key", data: "catalog: x.yaml\n"},
		{name: "zero capacity", data: "ledger:\n  capacity: 0\n"},
		{name: "empty catalog path", data: "catalog_path: \"\"\n"},
		{name: "negative increment", data: "infinite_play:\n  crossover_fraction: 1\n  easy_increment: -5\n  hard_increment: 1\n"},
		{name: "bad log level", data: "telemetry:\n  logging:\n    level: loud\n"},
		{name: "not yaml", data: "ledger: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	data := "catalog_path: catalogs/main.yaml\nscoring:\n  script: score.star\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if want := filepath.Join(dir, "catalogs", "main.yaml"); cfg.CatalogPath != want {
		t.Errorf("expected catalog path %s, got %s", want, cfg.CatalogPath)
	}
	if want := filepath.Join(dir, "colony.db"); cfg.Database.Path != want {
		t.Errorf("expected database path %s, got %s", want, cfg.Database.Path)
	}
	if want := filepath.Join(dir, "score.star"); cfg.Scoring.Script != want {
		t.Errorf("expected script path %s, got %s", want, cfg.Scoring.Script)
	}
}

func TestLoadKeepsMemoryDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	if err := os.WriteFile(path, []byte("database:\n  path: \":memory:\"\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("expected :memory:, got %s", cfg.Database.Path)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for a missing file, got %v", err)
	}
	if cfg.Ledger.Capacity != 20 {
		t.Errorf("expected default capacity, got %d", cfg.Ledger.Capacity)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)

	cfg := Default()
	cfg.Ledger.Capacity = 7
	cfg.Seed = 9
	if err := cfg.Save(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if loaded.Ledger.Capacity != 7 || loaded.Seed != 9 {
		t.Errorf("unexpected reloaded config: capacity=%d seed=%d", loaded.Ledger.Capacity, loaded.Seed)
	}
	if loaded.Scoring.Timeout != 5*time.Second {
		t.Errorf("expected timeout to round-trip, got %v", loaded.Scoring.Timeout)
	}
}
