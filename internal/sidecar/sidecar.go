// Package sidecar creates and merges XMP sidecar files next to media files.
// Updates are targeted: managed elements (keywords, GPS, capture time) are
// replaced and everything else in the document is kept.
package sidecar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/pkg/utils"
)

const (
	nsX         = "adobe:ns:meta/"
	nsRDF       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsXMP       = "http://ns.adobe.com/xap/1.0/"
	nsLightroom = "http://ns.adobe.com/lightroom/1.0/"
	nsDC        = "http://purl.org/dc/elements/1.1/"
	nsEXIF      = "http://ns.adobe.com/exif/1.0/"

	// DateTimeLayout is how capture times are written to exif:DateTimeOriginal.
	DateTimeLayout = "2006-01-02T15:04:05.00Z"
	// Extension is the sidecar file extension.
	Extension = ".xmp"
)

// ErrCorrupt is returned when an existing sidecar cannot be interpreted.
var ErrCorrupt = errors.New("corrupt sidecar")

// Update is the data merged into a sidecar. Nil fields leave the existing
// elements alone.
type Update struct {
	Keywords    []string
	Location    *models.Coordinates
	CaptureTime *time.Time
}

// Document is the decoded view of the fields divetag manages.
type Document struct {
	Keywords    []string
	Location    *models.Coordinates
	CaptureTime *time.Time
}

// PathFor returns the sidecar path for a media file: same directory and stem,
// .xmp extension.
func PathFor(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + Extension
}

// Merger writes sidecars.
type Merger struct {
	logger *zap.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) MergerOption {
	return func(m *Merger) { m.logger = l }
}

// NewMerger returns a Merger.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge creates the sidecar at path from the template if it does not exist,
// otherwise merges u into it. Keywords become the sorted, deduplicated union of
// existing and new. Merging the same update twice leaves the file unchanged.
func (m *Merger) Merge(path string, u Update) error {
	doc, desc, created, err := load(path)
	if err != nil {
		return err
	}

	root := doc.Root()
	existing := readKeywords(root)
	keywords := NormalizeKeywords(append(existing, u.Keywords...))
	replaceKeywords(root, desc, keywords)
	if u.Location != nil {
		setText(root, desc, nsEXIF, "exif", "GPSLatitude", FormatCoordinate(u.Location.Latitude, true))
		setText(root, desc, nsEXIF, "exif", "GPSLongitude", FormatCoordinate(u.Location.Longitude, false))
	}
	if u.CaptureTime != nil {
		setText(root, desc, nsEXIF, "exif", "DateTimeOriginal", u.CaptureTime.Format(DateTimeLayout))
	}

	ensureDeclaration(doc)
	doc.Indent(1)
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := utils.WriteFileAtomic(path, data, perm); err != nil {
		return err
	}
	m.logger.Debug("sidecar written",
		zap.String("path", path),
		zap.Bool("created", created),
		zap.Strings("keywords", keywords),
		zap.Bool("gps", u.Location != nil))
	return nil
}

// Load decodes the managed fields of the sidecar at path.
func Load(path string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	root := doc.Root()
	if findFirst(root, nsRDF, "Description") == nil {
		return nil, fmt.Errorf("%w: %s: no rdf:Description", ErrCorrupt, path)
	}
	out := &Document{Keywords: NormalizeKeywords(readKeywords(root))}

	lat, latOK := propertyText(root, nsEXIF, "GPSLatitude")
	lon, lonOK := propertyText(root, nsEXIF, "GPSLongitude")
	if latOK && lonOK {
		la, err1 := ParseCoordinate(lat)
		lo, err2 := ParseCoordinate(lon)
		if err1 == nil && err2 == nil {
			out.Location = &models.Coordinates{Latitude: la, Longitude: lo}
		}
	}
	if s, ok := propertyText(root, nsEXIF, "DateTimeOriginal"); ok {
		if t, err := parseDateTime(s); err == nil {
			out.CaptureTime = &t
		}
	}
	return out, nil
}

// NormalizeKeywords trims and NFC-normalizes keywords, drops empties and
// duplicates, and sorts the result.
func NormalizeKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = norm.NFC.String(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// load opens the sidecar at path, or builds a fresh template document when the
// file does not exist.
func load(path string) (doc *etree.Document, desc *etree.Element, created bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		doc, desc = newTemplate()
		return doc, desc, true, nil
	}
	doc = etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, nil, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	desc = findFirst(doc.Root(), nsRDF, "Description")
	if desc == nil {
		return nil, nil, false, fmt.Errorf("%w: %s: no rdf:Description", ErrCorrupt, path)
	}
	return doc, desc, false, nil
}

func newTemplate() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	meta := doc.CreateElement("x:xmpmeta")
	meta.CreateAttr("xmlns:x", nsX)
	meta.CreateAttr("x:xmptk", "XMP Core 5.5.0")
	rdf := meta.CreateElement("rdf:RDF")
	rdf.CreateAttr("xmlns:rdf", nsRDF)
	desc := rdf.CreateElement("rdf:Description")
	desc.CreateAttr("rdf:about", "")
	desc.CreateAttr("xmlns:xmp", nsXMP)
	desc.CreateAttr("xmlns:lightroom", nsLightroom)
	desc.CreateAttr("xmlns:dc", nsDC)
	desc.CreateAttr("xmlns:exif", nsEXIF)
	desc.CreateElement("xmp:Rating").SetText("0")
	return doc, desc
}

func ensureDeclaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	doc.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="UTF-8"`))
}
