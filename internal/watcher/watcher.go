// Package watcher finds media files on disk and watches directories for new ones.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories and reports each new media file once it has
// stopped changing.
type Watcher struct {
	roots       []string
	filter      Filter
	onMedia     func(path string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	// seen holds paths already handed to onMedia. Tagging rewrites the file,
	// which must not trigger another round.
	seen     map[string]bool
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file events, etc.).
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a file must be quiet before it is reported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. onMedia is called once per matching
// file, from a timer goroutine; callers that need serial handling should hand
// the path to a single consumer.
func NewWatcher(roots []string, filter Filter, onMedia func(path string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:       roots,
		filter:      filter,
		onMedia:     onMedia,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		seen:        make(map[string]bool),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
// Roots must exist.
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
	w.logger.Debug("watcher starting",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.filter.Extensions),
		zap.Bool("recursive", w.filter.Recursive))
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	root, ok := w.rootFor(path)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if w.filter.Recursive && !w.filter.excluded(info.Name()) {
				w.handleNewDirectory(root, path)
			}
			return
		}
		if w.accept(root, path) {
			w.debounceMedia(path)
		}
	case ev.Has(fsnotify.Write):
		// A file still being copied in keeps pushing its timer back.
		w.mu.Lock()
		_, pending := w.debounceMap[path]
		w.mu.Unlock()
		if pending {
			w.debounceMedia(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		w.mu.Lock()
		delete(w.seen, path)
		w.mu.Unlock()
	}
}

func (w *Watcher) accept(root, path string) bool {
	return w.filter.Matches(path) && !w.filter.inExcludedDir(root, path)
}

// handleNewDirectory watches a directory that appeared under root and reports
// the media already inside it.
func (w *Watcher) handleNewDirectory(root, dirPath string) {
	w.logger.Debug("watcher handling new directory", zap.String("path", dirPath))

	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}

	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dirPath && w.filter.excluded(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})

	files, err := ListMedia(dirPath, w.filter)
	if err != nil {
		w.logger.Debug("watcher failed to list new directory", zap.String("path", dirPath), zap.Error(err))
		return
	}
	for _, f := range files {
		if w.accept(root, f) {
			w.debounceMedia(f)
		}
	}
}

func (w *Watcher) rootFor(path string) (string, bool) {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		rootClean := filepath.Clean(root)
		if rootClean == path || inDir(rootClean, path) {
			return rootClean, true
		}
	}
	return "", false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		eNorm := strings.TrimPrefix(strings.ToLower(e), ".")
		extNorm := strings.TrimPrefix(strings.ToLower(ext), ".")
		if eNorm == extNorm {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceMedia(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[path] {
		return
	}
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() { w.fire(path) })
	w.debounceMap[path] = t
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.debounceMap, path)
	if w.seen[path] || !w.started {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	onMedia := w.onMedia
	w.mu.Unlock()
	w.logger.Debug("watcher reporting media (debounced)", zap.String("path", path))
	if onMedia != nil {
		onMedia(path)
	}
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return err
	}
	if !w.filter.Recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.excluded(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// MarkSeen records paths as already reported, so later events for them are ignored.
// Watch mode calls it with the files it processed before starting.
func (w *Watcher) MarkSeen(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		w.seen[filepath.Clean(p)] = true
	}
}

// Directories returns a copy of the watched root directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop stops the watcher and releases resources. Pending files are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
