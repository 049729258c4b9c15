// Package metadata reads capture times and GPS positions from media files and
// writes GPS positions back, falling through an ordered list of backends per
// container format.
package metadata

import (
	"path/filepath"
	"strings"
)

// FormatClass groups media containers that share the same backend order.
type FormatClass int

const (
	FormatUnknown FormatClass = iota
	// FormatRAW covers camera RAW containers.
	FormatRAW
	// FormatBaseline covers JPEG and TIFF.
	FormatBaseline
	// FormatVideo covers video containers, handled only by the external tool.
	FormatVideo
)

// String returns the class name used in logs.
func (c FormatClass) String() string {
	switch c {
	case FormatRAW:
		return "raw"
	case FormatBaseline:
		return "baseline"
	case FormatVideo:
		return "video"
	default:
		return "unknown"
	}
}

var (
	RAWExtensions      = []string{".cr3", ".cr2", ".nef", ".arw", ".dng", ".raf", ".orf", ".rw2"}
	BaselineExtensions = []string{".jpg", ".jpeg", ".tif", ".tiff"}
	VideoExtensions    = []string{".mp4", ".mov", ".avi", ".m4v", ".mkv"}
)

// ImageExtensions returns the RAW and baseline extensions together.
func ImageExtensions() []string {
	out := append([]string(nil), RAWExtensions...)
	return append(out, BaselineExtensions...)
}

// ClassifyPath returns the format class for path based on its extension.
func ClassifyPath(path string) FormatClass {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case contains(RAWExtensions, ext):
		return FormatRAW
	case contains(BaselineExtensions, ext):
		return FormatBaseline
	case contains(VideoExtensions, ext):
		return FormatVideo
	}
	return FormatUnknown
}

func contains(list []string, ext string) bool {
	for _, e := range list {
		if e == ext {
			return true
		}
	}
	return false
}
