// Package watcher signals when the music library directory changes, so the
// app can schedule a resynchronization. It coalesces bursts of file events
// into single signals; deciding what changed is the synchronizer's job.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long to wait after the last event before signaling.
const DefaultDebounce = 2 * time.Second

// trackExtensions are the file types whose changes matter to the index.
var trackExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".lrc":  true, // sidecar lyrics
}

// Watcher watches a library directory tree and emits a signal when track
// files change.
type Watcher struct {
	debounce time.Duration

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	signals chan struct{}
	stopped bool
}

// New creates a Watcher with the given debounce window (0 selects the
// default).
func New(debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce: debounce,
		signals:  make(chan struct{}, 1),
	}
}

// Signals returns the channel that receives one value per coalesced burst
// of library changes. The channel is never closed while the watcher runs;
// it stops delivering after Stop.
func (w *Watcher) Signals() <-chan struct{} {
	return w.signals
}

// Start begins watching dir recursively until Stop is called or ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context, dir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		_ = fsw.Close()
		return fmt.Errorf("watcher already stopped")
	}
	w.fsw = fsw
	w.mu.Unlock()

	if err := addRecursive(fsw, dir); err != nil {
		_ = fsw.Close()
		return err
	}

	go w.run(ctx, fsw)
	slog.Debug("library watcher started", slog.String("dir", dir))
	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.fsw != nil {
		err := w.fsw.Close()
		w.fsw = nil
		return err
	}
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				// New subdirectories need their own watches.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(fsw, event.Name)
					continue
				}
			}
			if !isTrackFile(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.signals <- struct{}{}:
			default: // a signal is already pending
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("library watcher error", slog.String("error", err.Error()))
		}
	}
}

// addRecursive watches dir and every subdirectory beneath it.
func addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// isTrackFile reports whether a path is a track or sidecar lyrics file.
func isTrackFile(path string) bool {
	return trackExtensions[strings.ToLower(filepath.Ext(path))]
}
