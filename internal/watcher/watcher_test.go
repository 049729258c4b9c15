package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var mediaFilter = Filter{Extensions: []string{".jpg", ".cr3", ".mp4"}, Recursive: true, Exclude: []string{"rejects"}}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

func countSuffix(paths []string, suffix string) int {
	n := 0
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			n++
		}
	}
	return n
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{dir}, mediaFilter, rec.add, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(sub, "IMG_0001.JPG"), "jpeg"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, "IMG_0001.xmp"), "<x/>"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return countSuffix(rec.snapshot(), "IMG_0001.JPG") == 1 }) {
		t.Fatalf("expected IMG_0001.JPG to be reported, got %v", rec.snapshot())
	}
	if countSuffix(rec.snapshot(), ".xmp") != 0 {
		t.Errorf("sidecars must not be reported: %v", rec.snapshot())
	}
}

func TestWatcher_ReportsOnceUntilRemoved(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, mediaFilter, rec.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "clip.mp4")
	if err := writeFile(path, "v1"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatalf("expected one report, got %v", rec.snapshot())
	}

	// Rewriting the file in place, as tagging does, is not new media.
	tmp := filepath.Join(dir, "clip.mp4.tmp")
	if err := writeFile(tmp, "v2"); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("rewrite should not be reported again, got %v", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := writeFile(path, "v3"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return len(rec.snapshot()) == 2 }) {
		t.Errorf("a file added back after removal should be reported, got %v", rec.snapshot())
	}
}

func TestWatcher_MarkSeen(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, mediaFilter, rec.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	done := filepath.Join(dir, "done.jpg")
	w.MarkSeen(done)
	if err := writeFile(done, "x"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "new.jpg"), "x"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { return len(rec.snapshot()) >= 1 }) {
		t.Fatal("expected new.jpg to be reported")
	}
	time.Sleep(200 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 || !strings.HasSuffix(got[0], "new.jpg") {
		t.Errorf("reports = %v, want only new.jpg", got)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.jpg", []string{".jpg"}, true},
		{"/a/b.JPG", []string{".jpg"}, true},
		{"/a/b.CR3", []string{"cr3"}, true},
		{"/a/b.xmp", []string{".jpg"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
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
		{"/tmp/a", "/tmp/a/b.jpg", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_Start_missingRoot(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "nope")}, mediaFilter, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Error("expected error for missing root")
	}
}

func TestWatcher_HandleNewDirectory_reportsFilesInNewFolder(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, mediaFilter, rec.add, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Simulate copying a card folder into the watched directory
	nested := filepath.Join(dir, "day1", "DCIM")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "IMG_1.jpg"), "a"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "RAW_1.cr3"), "b"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "notes.txt"), "c"); err != nil {
		t.Fatal(err)
	}
	rejects := filepath.Join(dir, "rejects")
	if err := mkdirAll(rejects); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(rejects, "blurry.jpg"), "d"); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, func() bool {
		got := rec.snapshot()
		return countSuffix(got, "IMG_1.jpg") == 1 && countSuffix(got, "RAW_1.cr3") == 1
	})
	if !ok {
		t.Fatalf("expected IMG_1.jpg and RAW_1.cr3, got %v", rec.snapshot())
	}
	time.Sleep(300 * time.Millisecond)
	got := rec.snapshot()
	if countSuffix(got, "notes.txt") != 0 || countSuffix(got, "blurry.jpg") != 0 {
		t.Errorf("unexpected reports: %v", got)
	}
	if countSuffix(got, "IMG_1.jpg") != 1 {
		t.Errorf("IMG_1.jpg reported %d times", countSuffix(got, "IMG_1.jpg"))
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
