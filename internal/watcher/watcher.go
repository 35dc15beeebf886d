// Package watcher provides debounced file system watching for the hosts registry.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/vhosts/internal/log"
)

// DefaultDebounce coalesces the write, rename and chmod bursts of a single save.
const DefaultDebounce = 100 * time.Millisecond

// relevantOps are the operations that can change what a reader of the file sees.
// Create and Rename cover atomic replacement. Chmod alone never does.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Config holds watcher configuration options.
type Config struct {
	Path     string
	Debounce time.Duration
}

// DefaultConfig returns the watcher configuration for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, Debounce: DefaultDebounce}
}

// Watcher signals when a single file changes, at most once per quiet period.
//
// The parent directory is watched rather than the file itself: an atomic save
// renames a temp file over the target, which replaces the inode a direct watch
// would be attached to. Siblings such as the .lock file are filtered out.
type Watcher struct {
	fs       *fsnotify.Watcher
	path     string
	name     string
	debounce time.Duration
	signals  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for cfg.Path. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("watch path is required")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fs:       fsw,
		path:     cfg.Path,
		name:     filepath.Base(cfg.Path),
		debounce: debounce,
		signals:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}, nil
}

// Start watches the file's directory until ctx is done or Stop is called.
// The returned channel holds at most one pending signal; receivers re-read the
// file rather than count signals.
func (w *Watcher) Start(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(w.path)
	if err := w.fs.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}
	log.Debug(log.CatWatcher, "Watching", "path", w.path, "debounce", w.debounce)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
	return w.signals, nil
}

// Stop ends the loop and releases the fsnotify handle. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	var (
		timer  *time.Timer
		fire   <-chan time.Time
		bursts int
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.matches(event) {
				continue
			}
			bursts++
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			log.Debug(log.CatWatcher, "File changed", "path", w.path, "events", bursts)
			bursts = 0
			select {
			case w.signals <- struct{}{}:
			default:
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Watch error", err, "path", w.path)

		case <-ctx.Done():
			return
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) matches(event fsnotify.Event) bool {
	return event.Op&relevantOps != 0 && filepath.Base(event.Name) == w.name
}
