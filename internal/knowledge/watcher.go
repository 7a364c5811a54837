// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CORPUS WATCHER
// =============================================================================

// Watcher reloads the index when the corpus file changes on disk.
type Watcher struct {
	path     string
	ix       *Index
	store    *SQLiteStore
	debounce time.Duration
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending time.Time // zero when no change is waiting

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for the corpus at path. store may be nil.
func NewWatcher(path string, ix *Index, store *SQLiteStore, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Watcher{
		path:     filepath.Clean(abs),
		ix:       ix,
		store:    store,
		debounce: debounce,
		logger:   logger.With("component", "knowledge.watcher"),
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the corpus file's directory until ctx is cancelled or Close
// is called. Editors often replace files rather than write them in place, so
// the directory is watched and events are filtered by name.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch corpus directory: %w", err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); w.processEvents(ctx) }()
	go func() { defer wg.Done(); w.processPending(ctx) }()
	go func() { wg.Wait(); close(w.done) }()
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if ready {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if ready {
				if err := w.Reload(ctx); err != nil {
					w.logger.Error("corpus reload failed", slog.String("path", w.path), slog.Any("error", err))
				}
			}
		}
	}
}

// Reload reads the corpus file and swaps it into the store and index. A file
// that fails to parse leaves the current entries in place.
func (w *Watcher) Reload(ctx context.Context) error {
	entries, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	if w.store != nil {
		if err := w.store.ReplaceAll(ctx, entries); err != nil {
			return fmt.Errorf("update corpus store: %w", err)
		}
	}
	w.ix.Replace(entries)
	w.logger.Info("corpus reloaded", slog.String("path", w.path), slog.Int("entries", len(entries)))
	return nil
}
