// Package fileid derives a stable key for a media file so the ledger can tell
// whether the same file was already tagged.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const prefix = "media:"

// MediaKey returns a key built from the cleaned path, size and modification time.
// Touching or replacing the file yields a new key.
func MediaKey(path string, size int64, modTime time.Time) string {
	h := sha256.New()
	h.Write([]byte(filepath.Clean(path)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(modTime.UnixNano(), 10)))
	return prefix + hex.EncodeToString(h.Sum(nil))
}

// ForFile stats path and returns its MediaKey.
func ForFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return MediaKey(abs, info.Size(), info.ModTime()), nil
}
