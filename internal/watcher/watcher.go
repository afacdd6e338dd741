// Package watcher watches a local component source tree and reports changed
// source files in debounced batches.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/heywhy/bucket/internal/log"
)

// Watcher monitors a source directory and its subdirectories.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	root       string
	extensions []string
	debounce   time.Duration
	changes    chan []string
	done       chan struct{}
	stopOnce   sync.Once
}

// Config holds watcher options.
type Config struct {
	Root        string
	Extensions  []string
	DebounceDur time.Duration
}

// DefaultConfig watches root for YAML, JSON and HCL sources.
func DefaultConfig(root string) Config {
	return Config{
		Root:        root,
		Extensions:  []string{".yaml", ".yml", ".json", ".hcl"},
		DebounceDur: 250 * time.Millisecond,
	}
}

// New creates a watcher; nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher:  fsw,
		root:       cfg.Root,
		extensions: cfg.Extensions,
		debounce:   cfg.DebounceDur,
		changes:    make(chan []string, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start watches the root tree. The returned channel receives the sorted
// paths changed during each debounce window.
func (w *Watcher) Start() (<-chan []string, error) {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsWatcher.Add(path); err != nil {
				return fmt.Errorf("watching directory %s: %w", path, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	go w.loop()
	return w.changes, nil
}

// Stop terminates the watcher. Calling it again is a no-op.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// Watched returns the directories currently watched.
func (w *Watcher) Watched() []string {
	return w.fsWatcher.WatchList()
}

// Invalidator drops cached sources by location.
type Invalidator interface {
	Invalidate(location string) error
}

// Run starts the watcher and invalidates every changed path until ctx is
// done. onBatch, when set, sees each batch after invalidation.
func (w *Watcher) Run(ctx context.Context, inv Invalidator, onBatch func([]string)) error {
	changes, err := w.Start()
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-changes:
			for _, path := range batch {
				if err := inv.Invalidate(path); err != nil {
					log.ErrorErr(log.CatWatcher, "invalidate failed", err, "path", path)
				}
			}
			log.Info(log.CatWatcher, "sources changed", "count", len(batch))
			if onBatch != nil {
				onBatch(batch)
			}
		}
	}
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending = make(map[string]struct{})
	)

	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.trackDirectory(event)
			if !w.isRelevantEvent(event) {
				continue
			}
			pending[event.Name] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timerC():
			timer = nil
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			clear(pending)

			select {
			case w.changes <- batch:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "fsnotify error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// trackDirectory starts watching directories created under the root.
func (w *Watcher) trackDirectory(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsWatcher.Add(event.Name); err != nil {
		log.ErrorErr(log.CatWatcher, "watching new directory", err, "path", event.Name)
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(event.Name)))
}
