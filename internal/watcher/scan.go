package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Filter selects media files under a root.
type Filter struct {
	// Extensions are matched case-insensitively, with or without the dot. Empty matches all.
	Extensions []string
	Recursive  bool
	// Exclude lists directory names skipped at any depth below the root.
	Exclude []string
}

func (f Filter) excluded(name string) bool {
	for _, e := range f.Exclude {
		if e == name {
			return true
		}
	}
	return false
}

// Matches reports whether path has one of the filter's extensions.
func (f Filter) Matches(path string) bool {
	return matchExtension(path, f.Extensions)
}

// inExcludedDir reports whether any directory between root and path is excluded.
func (f Filter) inExcludedDir(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if f.excluded(part) {
			return true
		}
	}
	return false
}

// ListMedia returns the sorted paths of matching files under root.
// A missing root is an error.
func ListMedia(root string, f Filter) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	var out []string
	if !f.Recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("cannot access directory %s: %w", root, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && f.Matches(e.Name()) {
				out = append(out, filepath.Join(root, e.Name()))
			}
		}
		sort.Strings(out)
		return out, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && f.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && f.Matches(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
