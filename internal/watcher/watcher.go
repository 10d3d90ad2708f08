// Package watcher notices external changes to the directories the panes are
// showing, drops their cached listings and asks the UI to redraw. Changes
// made by the app's own operations go through the task hooks instead; this
// covers everything else touching the filesystem.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/cache"
)

// debounce coalesces event bursts (an unpack writing hundreds of files)
// into one refresh per directory.
const debounce = 100 * time.Millisecond

// Watcher follows a small, changing set of directories.
type Watcher struct {
	cache  *cache.Cache
	notify func(dir string)
	logger zerolog.Logger

	mu      sync.Mutex
	watched map[string]struct{}
	pending map[string]*time.Timer

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a watcher that invalidates listings in c and calls notify with
// the affected directory after each settled burst of events. notify runs on
// the watcher's goroutine and must not block.
func New(c *cache.Cache, notify func(dir string), logger zerolog.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		cache:   c,
		notify:  notify,
		logger:  logger,
		watched: make(map[string]struct{}),
		pending: make(map[string]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	w.fsw = fsw

	go w.loop()
	return nil
}

func (w *Watcher) Stop() {
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = make(map[string]*time.Timer)
}

// Watch adds dir to the watched set. Watching the same directory twice is a
// no-op, so pane navigation can call this unconditionally.
func (w *Watcher) Watch(dir string) error {
	dir = filepath.Clean(dir)

	w.mu.Lock()
	if _, ok := w.watched[dir]; ok {
		w.mu.Unlock()
		return nil
	}
	w.watched[dir] = struct{}{}
	w.mu.Unlock()

	if err := w.fsw.Add(dir); err != nil {
		w.mu.Lock()
		delete(w.watched, dir)
		w.mu.Unlock()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Debug().Str("dir", dir).Msg("watching directory")
	return nil
}

// Unwatch removes dir from the watched set.
func (w *Watcher) Unwatch(dir string) {
	dir = filepath.Clean(dir)

	w.mu.Lock()
	if _, ok := w.watched[dir]; !ok {
		w.mu.Unlock()
		return
	}
	delete(w.watched, dir)
	w.mu.Unlock()

	if err := w.fsw.Remove(dir); err != nil {
		w.logger.Debug().Err(err).Str("dir", dir).Msg("unwatch failed")
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}

	dir := filepath.Dir(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watched[dir]; !ok {
		// The event may be about a watched directory itself being
		// removed or renamed.
		if _, ok := w.watched[filepath.Clean(event.Name)]; !ok {
			return
		}
		dir = filepath.Clean(event.Name)
	}

	if t, ok := w.pending[dir]; ok {
		t.Reset(debounce)
		return
	}
	w.pending[dir] = time.AfterFunc(debounce, func() {
		w.mu.Lock()
		delete(w.pending, dir)
		w.mu.Unlock()

		w.cache.InvalidateDir(dir)
		w.logger.Debug().Str("dir", dir).Msg("external change detected")
		if w.notify != nil {
			w.notify(dir)
		}
	})
}
