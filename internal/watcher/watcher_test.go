package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.paths...)
	sort.Strings(out)
	return out
}

func (c *collector) waitFor(n int, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	return c.snapshot()
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(nil, []string{".docx"}, true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_NewReportIsDebounced(t *testing.T) {
	dir := t.TempDir()
	var got collector
	w := NewWatcher([]string{dir}, []string{".docx", ".xlsx"}, true, got.add, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	report := filepath.Join(dir, "2024年3月进度.docx")
	writeFile(t, report)
	writeFile(t, filepath.Join(dir, "~$2024年3月进度.docx"))
	writeFile(t, filepath.Join(dir, "notes.txt"))
	// A second write inside the window must not produce a second callback.
	if err := os.WriteFile(report, []byte("PK again"), 0644); err != nil {
		t.Fatal(err)
	}

	got.waitFor(1, 3*time.Second)
	time.Sleep(300 * time.Millisecond)
	paths := got.snapshot()
	if len(paths) != 1 || filepath.Base(paths[0]) != "2024年3月进度.docx" {
		t.Errorf("callbacks = %v, want only the report once", paths)
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.xlsx"))
	writeFile(t, filepath.Join(dir, "sub", "b.docx"))
	writeFile(t, filepath.Join(dir, "ignore.pdf"))

	var got collector
	w := NewWatcher([]string{dir}, []string{".docx", ".xlsx"}, true, got.add)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExisting()

	paths := got.snapshot()
	if len(paths) != 2 || filepath.Base(paths[0]) != "a.xlsx" || filepath.Base(paths[1]) != "b.docx" {
		t.Errorf("synced = %v", paths)
	}
}

func TestWatcher_SyncExisting_NonRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.xlsx"))
	writeFile(t, filepath.Join(dir, "sub", "b.docx"))

	var got collector
	w := NewWatcher([]string{dir}, []string{".docx", ".xlsx"}, false, got.add)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExisting()

	paths := got.snapshot()
	if len(paths) != 1 || filepath.Base(paths[0]) != "a.xlsx" {
		t.Errorf("synced = %v", paths)
	}
}

func TestWatcher_NewDirectoryIsSynced(t *testing.T) {
	dir := t.TempDir()
	staging := t.TempDir()
	writeFile(t, filepath.Join(staging, "batch", "2024-05.docx"))

	var got collector
	w := NewWatcher([]string{dir}, []string{".docx"}, true, got.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Rename(filepath.Join(staging, "batch"), filepath.Join(dir, "batch")); err != nil {
		t.Fatal(err)
	}
	paths := got.waitFor(1, 3*time.Second)
	if len(paths) == 0 || filepath.Base(paths[0]) != "2024-05.docx" {
		t.Errorf("callbacks = %v", paths)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox", "reports")
	w := NewWatcher([]string{root}, nil, true, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
}

func TestWatcher_SourceName(t *testing.T) {
	base := t.TempDir()
	inbox := filepath.Join(base, "inbox")
	site := filepath.Join(base, "sites", "east")
	w := NewWatcher([]string{inbox, site}, []string{".docx"}, true, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(inbox, "2024-03.docx"), "inbox/2024-03.docx"},
		{filepath.Join(inbox, "siteA", "2024-03.docx"), "inbox/siteA/2024-03.docx"},
		{filepath.Join(inbox, "siteB", "2024-03.docx"), "inbox/siteB/2024-03.docx"},
		{filepath.Join(site, "2024-03.docx"), "east/2024-03.docx"},
		{filepath.Join(base, "elsewhere", "2024-03.docx"), "2024-03.docx"},
	}
	for _, tt := range tests {
		if got := w.SourceName(tt.path); got != tt.want {
			t.Errorf("SourceName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsReport(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/in/2024-01.docx", []string{".docx"}, true},
		{"/in/2024-01.DOCX", []string{"docx"}, true},
		{"/in/2024-01.xlsx", []string{".docx"}, false},
		{"/in/~$2024-01.docx", []string{".docx"}, false},
		{"/in/.2024-01.docx.swp", nil, false},
		{"/in/report", nil, true},
	}
	for _, tt := range tests {
		if got := isReport(tt.path, tt.extensions); got != tt.want {
			t.Errorf("isReport(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.docx", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
