// Package watcher implements the File Watcher (§4.E): it turns raw
// filesystem events into coalesced, debounced incremental syncs.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeforge/internal/logging"
)

const (
	// DefaultDebounce is the window events within which settle into one
	// sync call (§4.E "≈500 ms").
	DefaultDebounce = 500 * time.Millisecond
	tickInterval    = 100 * time.Millisecond
)

// SyncFilesFunc runs the Sync Engine's incremental path over a settled
// path set. Paths are project-root-relative.
type SyncFilesFunc func(ctx context.Context, paths []string) error

// FullSyncFunc runs a complete discovery-based sync, used on event-queue
// overflow (§4.E "overflow ... escalates to a full project sync").
type FullSyncFunc func(ctx context.Context) error

// Watcher watches one project root and drives SyncFiles/FullSync as
// filesystem events settle. Grounded on the debounce-map/ticker event
// loop shape used for .mg file watching in the teacher codebase, adapted
// here to watch an entire project tree and report overflow.
type Watcher struct {
	root      string
	syncFiles SyncFilesFunc
	fullSync  FullSyncFunc
	debounce  time.Duration

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	coalescer *Coalescer
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func New(root string, syncFiles SyncFilesFunc, fullSync FullSyncFunc) *Watcher {
	return &Watcher{
		root:      root,
		syncFiles: syncFiles,
		fullSync:  fullSync,
		debounce:  DefaultDebounce,
		coalescer: NewCoalescer(DefaultDebounce),
	}
}

// Start begins watching w.root, recursively, in a background goroutine.
// Start is idempotent; calling it twice while already running is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := addRecursive(fsw, w.root); err != nil {
		fsw.Close()
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Stop drains and terminates the watcher: every pending path, including
// those still inside their debounce window, is handed to one final sync
// call before the event loop exits.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fsw := w.stopCh, w.doneCh, w.fsw
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if fsw != nil {
		fsw.Close()
	}
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				logging.Get(logging.CategorySync).Warn("watcher: failed to watch %s: %v", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			// Drain: paths still inside their debounce window are synced too.
			if pending := w.coalescer.Settled(time.Now().Add(w.debounce)); len(pending) > 0 {
				if err := w.syncFiles(ctx, pending); err != nil {
					logging.Get(logging.CategorySync).Warn("watcher: incremental sync on stop failed for %d paths: %v", len(pending), err)
				}
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.Get(logging.CategorySync).Warn("watcher: event queue overflow, escalating to full sync")
				if fullErr := w.fullSync(ctx); fullErr != nil {
					logging.Get(logging.CategorySync).Warn("watcher: full sync after overflow failed: %v", fullErr)
				}
				continue
			}
			logging.Get(logging.CategorySync).Warn("watcher: error: %v", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// handleEvent records the touched path; rename is modeled as delete+create
// by relying on os.Stat at sync time rather than on the fsnotify op itself
// (§4.E "rename is modeled as delete+create") — a renamed-away path will
// fail to stat and be removed, a renamed-into path will stat fine and be
// (re)ingested.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			w.mu.Lock()
			fsw := w.fsw
			w.mu.Unlock()
			if fsw != nil {
				_ = addRecursive(fsw, ev.Name)
			}
			return // directory itself isn't a syncable path
		}
	}
	w.coalescer.Record(rel, time.Now())
}

func (w *Watcher) flush(ctx context.Context) {
	settled := w.coalescer.Settled(time.Now())
	if len(settled) == 0 {
		return
	}
	if err := w.syncFiles(ctx, settled); err != nil {
		logging.Get(logging.CategorySync).Warn("watcher: incremental sync failed for %d paths: %v", len(settled), err)
	}
}
