package registry

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unisql-project/unisql/pkg/log"
)

// Watcher monitors the profile file for changes and reloads the
// registry. Events are debounced: editors commonly emit several write
// events per save.
type Watcher struct {
	mu sync.Mutex

	registry *Registry
	logger   *log.Logger

	fsWatcher *fsnotify.Watcher

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	debounceDelay time.Duration
	pending       bool
	eventTimer    *time.Timer

	onReload func()
	onError  func(err error)
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for batching file events.
// Default is 100ms.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounceDelay = d }
}

// WithOnReload sets a callback invoked after each successful reload.
func WithOnReload(fn func()) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// WithOnError sets a callback for reload errors.
func WithOnError(fn func(err error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher creates a watcher over the registry's profile file.
func NewWatcher(r *Registry, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		registry:      r,
		logger:        r.logger,
		debounceDelay: 100 * time.Millisecond,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsWatcher = fsw
	return w, nil
}

// Start begins watching. Watching the containing directory rather than
// the file itself survives rename-and-replace saves.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	dir := filepath.Dir(w.registry.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	w.running = true
	go w.loop()

	w.logger.Info(log.CategorySystem, "watching profiles", "path", w.registry.path)
	return nil
}

// Stop halts the watcher and releases its resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	defer close(w.doneCh)

	target := filepath.Clean(w.registry.path)
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = true
	if w.eventTimer != nil {
		w.eventTimer.Stop()
	}
	w.eventTimer = time.AfterFunc(w.debounceDelay, w.flushReload)
}

func (w *Watcher) flushReload() {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	if err := w.registry.Reload(); err != nil {
		w.reportError(err)
		return
	}

	w.logger.Info(log.CategorySystem, "profiles reloaded", "path", w.registry.path)
	if w.onReload != nil {
		w.onReload()
	}
}

func (w *Watcher) reportError(err error) {
	w.logger.Error(log.CategorySystem, "profile watch error", err)
	if w.onError != nil {
		w.onError(err)
	}
}
