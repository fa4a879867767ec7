package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the dataset whenever a split file in dir changes.
// Rapid successive writes (the builder rewrites both splits) are coalesced
// through a debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration

	mu  sync.RWMutex
	ds  *Dataset
	fsw *fsnotify.Watcher
}

// NewWatcher loads the dataset in dir and starts watching it. Reloads run
// until ctx is cancelled. onReload may be nil.
func NewWatcher(ctx context.Context, dir string, onReload func(*Dataset)) (*Watcher, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("dataset: empty watch dir")
	}

	ds, err := Load(ctx, dir)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dataset: fsnotify: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("dataset: watch %q: %w", dir, err)
	}

	w := &Watcher{
		dir:      dir,
		debounce: 500 * time.Millisecond,
		ds:       ds,
		fsw:      fsw,
	}
	go w.loop(ctx, onReload)
	return w, nil
}

// Dataset returns the currently loaded dataset.
func (w *Watcher) Dataset() *Dataset {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ds
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	if w == nil || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context, onReload func(*Dataset)) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			_ = w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isSplitFile(ev.Name) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
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
			ds, err := Load(ctx, w.dir)
			if err != nil {
				// Keep serving the previous dataset on a partial rewrite.
				continue
			}
			w.mu.Lock()
			w.ds = ds
			w.mu.Unlock()
			if onReload != nil {
				onReload(ds)
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func isSplitFile(path string) bool {
	base := filepath.Base(path)
	return base == CorpusFile || base == QueriesFile
}
