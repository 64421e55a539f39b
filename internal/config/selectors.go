package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"watchalong/internal/logging"
	"watchalong/internal/session"
)

// LoadSelectors reads a selectors file (the same keys as the config's
// selectors section) and fills unset entries from base.
func LoadSelectors(path string, base session.Selectors) (session.Selectors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	var sel session.Selectors
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return base, fmt.Errorf("failed to parse selectors %s: %w", path, err)
	}
	sel = sel.Merge(base)
	if err := sel.Validate(); err != nil {
		return base, err
	}
	return sel, nil
}

// SelectorWatcher serves selectors from a file and reloads them when the
// file changes. A reload that fails keeps the previous selectors.
type SelectorWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	base        session.Selectors
	current     atomic.Pointer[session.Selectors]
	pending     time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	reloads     atomic.Int64
}

var _ session.SelectorSource = (*SelectorWatcher)(nil)

// NewSelectorWatcher loads path over base. A missing file is not an error;
// base is served until the file appears.
func NewSelectorWatcher(path string, base session.Selectors) (*SelectorWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sw := &SelectorWatcher{
		watcher:     watcher,
		path:        abs,
		base:        base,
		debounceDur: 300 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	sel, err := LoadSelectors(abs, base)
	if err != nil && !os.IsNotExist(err) {
		watcher.Close()
		return nil, err
	}
	sw.current.Store(&sel)
	return sw, nil
}

// Selectors returns the selectors in effect.
func (sw *SelectorWatcher) Selectors() session.Selectors {
	return *sw.current.Load()
}

// Reloads returns how many reloads have succeeded.
func (sw *SelectorWatcher) Reloads() int64 {
	return sw.reloads.Load()
}

// Start begins watching the file's directory. Editors often replace files
// rather than write them in place, so the directory is watched.
// This method is non-blocking.
func (sw *SelectorWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = true
	sw.mu.Unlock()

	if err := sw.watcher.Add(filepath.Dir(sw.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(sw.path), err)
	}
	logging.Config("SelectorWatcher: watching %s", sw.path)

	go sw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (sw *SelectorWatcher) Stop() {
	sw.mu.Lock()
	running := sw.running
	sw.running = false
	sw.mu.Unlock()

	if running {
		close(sw.stopCh)
		<-sw.doneCh
	}
	if err := sw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("SelectorWatcher: error closing watcher: %v", err)
	}
}

func (sw *SelectorWatcher) run(ctx context.Context) {
	defer close(sw.doneCh)

	debounceTicker := time.NewTicker(50 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopCh:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("SelectorWatcher error: %v", err)

		case <-debounceTicker.C:
			sw.processDebounced()
		}
	}
}

func (sw *SelectorWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != sw.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	sw.mu.Lock()
	sw.pending = time.Now()
	sw.mu.Unlock()
}

func (sw *SelectorWatcher) processDebounced() {
	sw.mu.Lock()
	if sw.pending.IsZero() || time.Since(sw.pending) < sw.debounceDur {
		sw.mu.Unlock()
		return
	}
	sw.pending = time.Time{}
	sw.mu.Unlock()

	sel, err := LoadSelectors(sw.path, sw.base)
	if err != nil {
		logging.Get(logging.CategoryConfig).Warn("SelectorWatcher: keeping previous selectors: %v", err)
		return
	}
	sw.current.Store(&sel)
	sw.reloads.Add(1)
	logging.Config("SelectorWatcher: reloaded %s", sw.path)
}
