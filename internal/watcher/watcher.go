// Package watcher watches inbox directories for progress reports and hands
// each settled file to a callback.
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

	"github.com/Larry-Leee/progressVisualisation/internal/fileid"
)

// Office keeps writing a report for a while after the first event; wait for quiet.
const defaultDebounce = 750 * time.Millisecond

// Watcher watches inbox roots and calls onReport once a matching file stops changing.
// Removed files are ignored: stored records are never deleted.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onReport   func(path string)
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	pending    map[string]*time.Timer // fileid.PathID -> timer
	rootPaths  map[string][]string    // root -> directories added for it
	done       chan struct{}
	started    bool
	stopOnce   sync.Once
	logger     *zap.Logger // optional
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for directory and file events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before onReport runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. extensions filter report files
// (empty means all files).
func NewWatcher(roots []string, extensions []string, recursive bool, onReport func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		roots:      append([]string(nil), roots...),
		extensions: extensions,
		recursive:  recursive,
		onReport:   onReport,
		debounce:   defaultDebounce,
		pending:    make(map[string]*time.Timer),
		rootPaths:  make(map[string][]string),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start adds every root (creating missing ones) and runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	}
	for i, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err == nil {
			w.roots[i] = abs
			err = w.addRootLocked(abs)
		}
		if err != nil {
			_ = fw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	events, errs := fw.Events, fw.Errors
	w.mu.Unlock()
	go w.run(ctx, events, errs)
	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.isReport(path) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// handleNewDirectory watches a directory moved or created under a root and
// hands over the reports already inside it.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fw := w.watcher
	recursive := w.recursive
	w.mu.Unlock()
	if fw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil && w.logger != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.syncDirectory(dir)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

// SourceName names a report found under a watched root: the root's base name
// followed by the path below it, slash-separated, as in "inbox/siteA/2024-03.docx".
// Reports sharing a file name in different folders or roots stay distinct.
// Paths outside every root fall back to their base name.
func (w *Watcher) SourceName(path string) string {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	best := ""
	for _, root := range roots {
		root = filepath.Clean(root)
		if inDir(root, clean) && len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return filepath.Base(clean)
	}
	rel, err := filepath.Rel(filepath.Dir(best), clean)
	if err != nil {
		return filepath.Base(clean)
	}
	return filepath.ToSlash(rel)
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) isReport(path string) bool {
	return isReport(path, w.extensions)
}

// isReport reports whether path has a watched extension and is not an
// editor lock or hidden temp file.
func isReport(path string, extensions []string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(path string) {
	id := fileid.PathID(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[id]; ok {
		t.Stop()
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, id)
		onReport := w.onReport
		w.mu.Unlock()
		if w.logger != nil {
			w.logger.Debug("watcher report settled", zap.String("path", path))
		}
		if onReport != nil {
			onReport(path)
		}
	})
}

func (w *Watcher) cancel(path string) {
	id := fileid.PathID(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[id]; ok {
		t.Stop()
		delete(w.pending, id)
	}
}

// AddDirectory starts watching root and, when syncExisting is set, hands
// over the reports already in it. Adding a watched root is a no-op.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	if w.logger != nil {
		w.logger.Info("watching directory", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	}
	if syncExisting && w.onReport != nil {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Watcher) syncDirectory(root string) {
	w.mu.Lock()
	exts := append([]string(nil), w.extensions...)
	recursive := w.recursive
	onReport := w.onReport
	w.mu.Unlock()
	if onReport == nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isReport(path, exts) {
			onReport(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Records ingested from it stay stored.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := -1
	for i, r := range w.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	if w.logger != nil {
		w.logger.Info("stopped watching directory", zap.String("path", abs))
	}
	return nil
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExisting hands every report already present under the roots to the
// callback. Call it after Start to pick up files that arrived while the
// server was down.
func (w *Watcher) SyncExisting() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stop releases the fsnotify watcher and drops pending callbacks.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
