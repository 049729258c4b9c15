// Package divelog reads Subsurface XML dive logs into models.Dive values.
package divelog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/models"
)

// UnknownSiteName names the placeholder site of a dive whose divesiteid does not resolve.
const UnknownSiteName = "Unknown Site"

// ErrInvalidDive is wrapped by per-dive parse failures. Such dives are skipped, not fatal.
var ErrInvalidDive = errors.New("invalid dive")

// Parser reads Subsurface logs.
type Parser struct {
	logger *zap.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for skipped-dive warnings.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads the log at path. A missing file or malformed XML is an error;
// individual dives that cannot be parsed are skipped with a warning.
func (p *Parser) ParseFile(path string) ([]*models.Dive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dive log not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read dive log: %w", err)
	}
	dives, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dives, nil
}

// Parse decodes a log held in memory. Dives come back in document order:
// top-level dives first, then dives inside trips, then loose dives under <dives>.
func (p *Parser) Parse(data []byte) ([]*models.Dive, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("invalid XML in dive log: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("invalid XML in dive log: no root element")
	}

	sites := parseSites(root)

	var elems []*etree.Element
	elems = append(elems, root.SelectElements("dive")...)
	if section := root.SelectElement("dives"); section != nil {
		for _, trip := range section.SelectElements("trip") {
			elems = append(elems, trip.SelectElements("dive")...)
		}
		elems = append(elems, section.SelectElements("dive")...)
	}

	dives := make([]*models.Dive, 0, len(elems))
	for i, el := range elems {
		d, err := parseDive(el, i+1, sites)
		if err != nil {
			p.logger.Warn("divelog skipping dive",
				zap.Int("position", i+1),
				zap.Error(err))
			continue
		}
		dives = append(dives, d)
	}
	p.logger.Debug("divelog parsed",
		zap.Int("sites", len(sites)),
		zap.Int("dives", len(dives)),
		zap.Int("skipped", len(elems)-len(dives)))
	return dives, nil
}

func parseSites(root *etree.Element) map[string]*models.DiveSite {
	sites := make(map[string]*models.DiveSite)
	section := root.SelectElement("divesites")
	if section == nil {
		return sites
	}
	for _, el := range section.SelectElements("site") {
		id := strings.TrimSpace(el.SelectAttrValue("uuid", ""))
		site := &models.DiveSite{
			ID:       id,
			Name:     el.SelectAttrValue("name", ""),
			Location: parseGPS(el.SelectAttrValue("gps", "")),
		}
		sites[id] = site
	}
	return sites
}

// parseGPS reads "lat lon" in decimal degrees. Anything else means no location.
func parseGPS(s string) *models.Coordinates {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil
	}
	return &models.Coordinates{Latitude: lat, Longitude: lon}
}

func parseDive(el *etree.Element, position int, sites map[string]*models.DiveSite) (*models.Dive, error) {
	number := position
	if raw := strings.TrimSpace(el.SelectAttrValue("number", "")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrInvalidDive, raw)
		}
		number = n
	}

	start, err := parseStart(el.SelectAttrValue("date", ""), el.SelectAttrValue("time", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: dive %d: %v", ErrInvalidDive, number, err)
	}

	siteID := strings.TrimSpace(el.SelectAttrValue("divesiteid", ""))
	site, ok := sites[siteID]
	if !ok || siteID == "" {
		site = &models.DiveSite{ID: siteID, Name: UnknownSiteName}
	}

	return &models.Dive{
		Number:          number,
		Start:           start,
		DurationMinutes: ParseDuration(el.SelectAttrValue("duration", "")),
		Site:            site,
		Tags:            parseTags(el.SelectAttrValue("tags", "")),
	}, nil
}

// parseStart combines a YYYY-MM-DD date with an HH:MM:SS, HH:MM or HH time.
// An empty time is midnight.
func parseStart(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, errors.New("missing date")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", date)
	}

	clock = strings.TrimSpace(clock)
	if clock == "" {
		return day, nil
	}
	var layout string
	switch strings.Count(clock, ":") {
	case 0:
		layout = "15"
	case 1:
		layout = "15:04"
	case 2:
		layout = "15:04:05"
	default:
		return time.Time{}, fmt.Errorf("bad time %q", clock)
	}
	tod, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q", clock)
	}
	return day.Add(time.Duration(tod.Hour())*time.Hour +
		time.Duration(tod.Minute())*time.Minute +
		time.Duration(tod.Second())*time.Second), nil
}

// ParseDuration converts a Subsurface duration into whole minutes.
// It accepts "MM:SS min", "H:MM:SS" and bare minutes; leftover seconds are dropped.
// Unparseable input yields 0.
func ParseDuration(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return 0
	}

	parts := strings.Split(s, ":")
	nums := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		return nums[0]
	case 2:
		return nums[0] + nums[1]/60
	case 3:
		return nums[0]*60 + nums[1] + nums[2]/60
	default:
		return 0
	}
}

func parseTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
