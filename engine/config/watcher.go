package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"aegis/engine/errs"
)

// Watcher watches an optional YAML overlay file and applies its contents
// onto a MutableConfig on every write, without requiring a restart.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current MutableConfig

	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher builds a Watcher seeded with base and, if overlayPath exists,
// immediately applies it once before watching begins.
func NewWatcher(overlayPath string, base MutableConfig) (*Watcher, error) {
	w := &Watcher{path: overlayPath, current: base, done: make(chan struct{})}

	if overlayPath == "" {
		return w, nil
	}

	if applied, err := loadOverlay(overlayPath, base); err == nil {
		w.current = applied
	} else if err != ErrNoOverlayFile {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create file watcher: %v", errs.ErrConfig, err)
	}
	if err := fw.Add(filepath.Dir(overlayPath)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("%w: watch config dir: %v", errs.ErrConfig, err)
	}
	w.watcher = fw

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path || ev.Op&fsnotify.Write == 0 {
				continue
			}
			w.mu.RLock()
			base := w.current
			w.mu.RUnlock()
			applied, err := loadOverlay(w.path, base)
			if err != nil {
				continue // malformed overlay: keep serving the last good config
			}
			w.mu.Lock()
			w.current = applied
			w.mu.Unlock()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

// Current returns the latest applied mutable config.
func (w *Watcher) Current() MutableConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the underlying watcher goroutine.
func (w *Watcher) Close() error {
	w.stopOnce.Do(func() { close(w.done) })
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func loadOverlay(path string, base MutableConfig) (MutableConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return base, ErrNoOverlayFile
	}
	if err != nil {
		return base, fmt.Errorf("%w: read overlay: %v", errs.ErrConfig, err)
	}
	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return base, fmt.Errorf("%w: parse overlay: %v", errs.ErrConfig, err)
	}
	return applyOverlay(base, o), nil
}
