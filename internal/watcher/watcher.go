// Package watcher observes the corpus root and the credentials file with
// fsnotify and fires debounced callbacks so caches stay fresh.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// credentialsKey is the debounce key for credential file changes, kept
// distinct from any filesystem path.
const credentialsKey = "\x00credentials"

// Watcher watches the corpus root and the credentials file.
//
// Corpus events are reported per path through onCorpusChange so the caller
// can map them to a tenant partition and invalidate its cache. Credential
// file events fire onCredentialsChange.
type Watcher struct {
	corpusRoot      string
	credentialsPath string
	onCorpusChange  func(path string)
	onCredentials   func()

	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the debounce interval. Tests use a short one.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over the corpus root and the credentials
// file. credentialsPath may be empty to skip credential watching.
func NewWatcher(corpusRoot, credentialsPath string, onCorpusChange func(path string), onCredentialsChange func(), opts ...Option) *Watcher {
	w := &Watcher{
		corpusRoot:      filepath.Clean(corpusRoot),
		credentialsPath: credentialsPath,
		onCorpusChange:  onCorpusChange,
		onCredentials:   onCredentialsChange,
		debounce:        defaultDebounce,
		debounceMap:     make(map[string]*time.Timer),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting",
			zap.String("corpus_root", w.corpusRoot),
			zap.String("credentials", w.credentialsPath))
	}
	if err := w.addCorpusLocked(); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	if w.credentialsPath != "" {
		// Watch the containing directory: editors and atomic writers replace
		// the file, which drops a watch on the file itself.
		if err := w.watcher.Add(filepath.Dir(w.credentialsPath)); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

// addCorpusLocked watches the corpus root and each tenant partition directly
// under it. fsnotify is not recursive, and partitions are single-level.
func (w *Watcher) addCorpusLocked() error {
	if _, err := os.Stat(w.corpusRoot); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(w.corpusRoot, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	if err := w.watcher.Add(w.corpusRoot); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.corpusRoot)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := w.watcher.Add(filepath.Join(w.corpusRoot, entry.Name())); err != nil && w.logger != nil {
			w.logger.Debug("watcher failed to add partition",
				zap.String("path", entry.Name()), zap.Error(err))
		}
	}
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	if w.credentialsPath != "" && path == filepath.Clean(w.credentialsPath) {
		if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
			w.fire(credentialsKey, w.onCredentials)
		}
		return
	}
	if !w.underCorpus(path) {
		return
	}
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// New tenant partition appeared under the root.
			w.mu.Lock()
			if w.watcher != nil {
				if err := w.watcher.Add(path); err != nil && w.logger != nil {
					w.logger.Debug("watcher failed to add partition", zap.String("path", path), zap.Error(err))
				}
			}
			w.mu.Unlock()
		}
		w.fire(path, func() { w.corpusChanged(path) })
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.cancelDebounce(path)
		w.corpusChanged(path)
	}
}

func (w *Watcher) corpusChanged(path string) {
	if w.onCorpusChange != nil {
		w.onCorpusChange(path)
	}
}

func (w *Watcher) underCorpus(path string) bool {
	rel, err := filepath.Rel(w.corpusRoot, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) &&
		rel != "." && !hasParentPrefix(rel)
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// fire schedules fn after the debounce interval, resetting any pending timer
// for the same key.
func (w *Watcher) fire(key string, fn func()) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[key]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, key)
		w.mu.Unlock()
		fn()
	})
	w.debounceMap[key] = t
}

func (w *Watcher) cancelDebounce(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[key]; ok {
		t.Stop()
		delete(w.debounceMap, key)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for key, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, key)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
