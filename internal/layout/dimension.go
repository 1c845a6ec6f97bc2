// Package layout holds the small amount of page geometry the converter
// needs: dimension strings, margin arithmetic and letterhead allowances.
package layout

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"dazzlodocs/internal/domain"
)

// DefaultUnit is assumed when a dimension has no unit suffix.
const DefaultUnit = "mm"

// millimeters per unit
var unitScale = map[string]float64{
	"mm": 1,
	"cm": 10,
	"in": 25.4,
	"pt": 25.4 / 72,
	"px": 25.4 / 96,
}

var dimensionRe = regexp.MustCompile(`^([+-]?(?:\d+\.?\d*|\.\d+))\s*([a-zA-Z]*)$`)

// Dimension is a length with a CSS unit.
type Dimension struct {
	Value float64
	Unit  string
}

// ParseDimension parses strings such as "12mm", "1.5in" or "12". Negative
// lengths are rejected.
func ParseDimension(s string) (Dimension, error) {
	m := dimensionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Dimension{}, fmt.Errorf("%w: invalid dimension %q", domain.ErrInvalidOptions, s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Dimension{}, fmt.Errorf("%w: invalid dimension %q", domain.ErrInvalidOptions, s)
	}
	if v < 0 {
		return Dimension{}, fmt.Errorf("%w: dimension %q is negative", domain.ErrInvalidOptions, s)
	}
	unit := strings.ToLower(m[2])
	if unit == "" {
		unit = DefaultUnit
	}
	if _, ok := unitScale[unit]; !ok {
		return Dimension{}, fmt.Errorf("%w: unsupported unit %q in %q", domain.ErrInvalidOptions, unit, s)
	}
	return Dimension{Value: v, Unit: unit}, nil
}

// Millimeters converts d to mm.
func (d Dimension) Millimeters() float64 { return d.Value * unitScale[d.Unit] }

// Inches converts d to inches, the unit the print engine expects.
func (d Dimension) Inches() float64 { return d.Millimeters() / unitScale["in"] }

// In converts d into unit.
func (d Dimension) In(unit string) (Dimension, error) {
	scale, ok := unitScale[unit]
	if !ok {
		return Dimension{}, fmt.Errorf("%w: unsupported unit %q", domain.ErrInvalidOptions, unit)
	}
	return Dimension{Value: round(d.Millimeters() / scale), Unit: unit}, nil
}

func (d Dimension) String() string {
	return strconv.FormatFloat(round(d.Value), 'f', -1, 64) + d.Unit
}

// Add returns d+other expressed in d's unit. Units are normalized, so
// "1in" + "25.4mm" is "2in".
func (d Dimension) Add(other Dimension) Dimension {
	o, _ := other.In(d.Unit)
	return Dimension{Value: round(d.Value + o.Value), Unit: d.Unit}
}

// AddMargin sums two dimension strings and keeps the unit of base.
func AddMargin(base, additional string) (string, error) {
	b, err := ParseDimension(base)
	if err != nil {
		return "", err
	}
	a, err := ParseDimension(additional)
	if err != nil {
		return "", err
	}
	return b.Add(a).String(), nil
}

// ToInches parses s and converts it to inches.
func ToInches(s string) (float64, error) {
	d, err := ParseDimension(s)
	if err != nil {
		return 0, err
	}
	return d.Inches(), nil
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
