package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/sfbuilder/colony/pkg/goals"
)

// DefaultReloadDelay debounces bursts of writes to the catalog file.
const DefaultReloadDelay = 500 * time.Millisecond

// ReloadFunc receives each catalog that loaded and validated after a change.
type ReloadFunc func(*LoadedCatalog) error

// CatalogWatcher reloads a catalog file whenever it changes on disk.
type CatalogWatcher struct {
	loader   *CatalogLoader
	path     string
	override *goals.InfinitePlay
	delay    time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewCatalogWatcher creates a watcher for the catalog at path.
func NewCatalogWatcher(path string, override *goals.InfinitePlay, logger zerolog.Logger) *CatalogWatcher {
	return &CatalogWatcher{
		loader:   NewCatalogLoader(),
		path:     filepath.Clean(path),
		override: override,
		delay:    DefaultReloadDelay,
		logger:   logger.With().Str("component", "catalog-watcher").Logger(),
	}
}

// SetReloadDelay changes the debounce delay. Call before Watch.
func (w *CatalogWatcher) SetReloadDelay(d time.Duration) {
	w.delay = d
}

// Watch starts watching and returns once the watch is established. The
// catalog's directory is watched rather than the file, so editors that
// replace the file by rename are picked up. Invalid catalogs are logged and
// skipped; reload keeps being called for later valid versions. Watching stops
// when ctx is cancelled or Stop is called.
func (w *CatalogWatcher) Watch(ctx context.Context, reload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, reload)

	w.logger.Info().Str("path", w.path).Msg("Started watching catalog")
	return nil
}

// processEvents processes file system events and triggers reloads.
func (w *CatalogWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, reload ReloadFunc) {
	defer close(w.done)

	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Catalog file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				if err := w.triggerReload(reload); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload catalog")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// triggerReload loads the catalog and hands it to reload.
func (w *CatalogWatcher) triggerReload(reload ReloadFunc) error {
	loaded, err := w.loader.LoadFile(w.path, w.override)
	if err != nil {
		return err
	}

	if err := reload(loaded); err != nil {
		return fmt.Errorf("failed to apply reloaded catalog: %w", err)
	}

	w.logger.Info().
		Int("goals", loaded.Catalog.Len()).
		Msg("Catalog reloaded")
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *CatalogWatcher) Stop() error {
	w.mu.Lock()
	watcher, done := w.watcher, w.done
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}
