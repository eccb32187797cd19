package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCatalogWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalog), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewCatalogWatcher(path, nil, zerolog.Nop())
	w.SetReloadDelay(20 * time.Millisecond)

	reloaded := make(chan *LoadedCatalog, 4)
	if err := w.Watch(ctx, func(c *LoadedCatalog) error {
		reloaded <- c
		return nil
	}); err != nil {
		t.Fatalf("failed to watch: %v", err)
	}
	defer w.Stop()

	// Writes to other files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	// An invalid version is skipped.
	if err := os.WriteFile(path, []byte("goals: [\n"), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	select {
	case c := <-reloaded:
		t.Fatalf("unexpected reload of invalid catalog: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}

	updated := strings.Replace(testCatalog, "name: red-valley", "name: blue-ridge", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	select {
	case c := <-reloaded:
		if c.Name != "blue-ridge" {
			t.Errorf("expected reloaded name blue-ridge, got %s", c.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestCatalogWatcherStopBeforeWatch(t *testing.T) {
	w := NewCatalogWatcher("catalog.yaml", nil, zerolog.Nop())
	if err := w.Stop(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestCatalogWatcherMissingDirectory(t *testing.T) {
	w := NewCatalogWatcher(filepath.Join(t.TempDir(), "nope", "catalog.yaml"), nil, zerolog.Nop())
	if err := w.Watch(context.Background(), func(*LoadedCatalog) error { return nil }); err == nil {
		t.Error("expected error watching a missing directory")
		_ = w.Stop()
	}
}
