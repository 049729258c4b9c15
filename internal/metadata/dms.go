package metadata

import (
	"fmt"
	"math"
	"strings"
)

// DMS is an unsigned coordinate in degrees, minutes and seconds.
// Seconds are kept to millisecond-of-arc precision.
type DMS struct {
	Degrees int
	Minutes int
	Seconds float64
}

// Rational is an EXIF rational value.
type Rational struct {
	Num int64
	Den int64
}

// ToDMS converts the magnitude of a decimal coordinate. Seconds are rounded
// to the nearest millisecond of arc, carrying into minutes and degrees, so
// Decimal(ToDMS(v)) is within 1/3600000 degree of |v|.
func ToDMS(decimal float64) DMS {
	total := int64(math.Round(math.Abs(decimal) * 3600000))
	return DMS{
		Degrees: int(total / 3600000),
		Minutes: int(total % 3600000 / 60000),
		Seconds: float64(total%60000) / 1000,
	}
}

// Decimal converts d back to decimal degrees.
func (d DMS) Decimal() float64 {
	return float64(d.Degrees) + float64(d.Minutes)/60 + d.Seconds/3600
}

// Rationals returns d as the three EXIF rationals deg/1, min/1, msec/1000.
func (d DMS) Rationals() []Rational {
	return []Rational{
		{Num: int64(d.Degrees), Den: 1},
		{Num: int64(d.Minutes), Den: 1},
		{Num: int64(math.Round(d.Seconds * 1000)), Den: 1000},
	}
}

// DecimalFromRationals converts EXIF degree, minute and second rationals.
func DecimalFromRationals(parts []Rational) (float64, error) {
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected 3 rationals, got %d", len(parts))
	}
	var vals [3]float64
	for i, p := range parts {
		if p.Den == 0 {
			return 0, fmt.Errorf("rational %d has zero denominator", i)
		}
		vals[i] = float64(p.Num) / float64(p.Den)
	}
	return vals[0] + vals[1]/60 + vals[2]/3600, nil
}

// HemisphereRef returns N/S for latitudes and E/W for longitudes.
func HemisphereRef(v float64, latitude bool) string {
	switch {
	case latitude && v < 0:
		return "S"
	case latitude:
		return "N"
	case v < 0:
		return "W"
	default:
		return "E"
	}
}

// ApplyHemisphere signs v from its reference. South and west are negative.
// An empty reference leaves v unchanged.
func ApplyHemisphere(v float64, ref string) float64 {
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -math.Abs(v)
	case "N", "E":
		return math.Abs(v)
	}
	return v
}
