package domain

import (
	"fmt"
	"strings"
)

// PageFormat is a named paper size.
type PageFormat string

const (
	FormatA4      PageFormat = "A4"
	FormatA3      PageFormat = "A3"
	FormatLetter  PageFormat = "Letter"
	FormatLegal   PageFormat = "Legal"
	FormatTabloid PageFormat = "Tabloid"
)

// Formats lists the supported page formats in display order.
var Formats = []PageFormat{FormatA4, FormatA3, FormatLetter, FormatLegal, FormatTabloid}

// ParsePageFormat matches s case-insensitively. An empty string yields A4.
func ParsePageFormat(s string) (PageFormat, error) {
	if strings.TrimSpace(s) == "" {
		return FormatA4, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidOptions, s)
}

// Key is the upper-case lookup key used by the paper size table.
func (f PageFormat) Key() string { return strings.ToUpper(string(f)) }

// Orientation is portrait or landscape.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// OrientationOf maps the landscape flag used by the request shells.
func OrientationOf(landscape bool) Orientation {
	if landscape {
		return Landscape
	}
	return Portrait
}

func (o Orientation) IsLandscape() bool { return o == Landscape }

// Margin holds four dimension strings such as "12mm".
type Margin struct {
	Top    string `json:"top"`
	Right  string `json:"right"`
	Bottom string `json:"bottom"`
	Left   string `json:"left"`
}

// Margin presets accepted by --margin and the HTTP "margin" field.
var (
	MarginSmall  = Margin{Top: "10mm", Right: "8mm", Bottom: "12mm", Left: "8mm"}
	MarginMedium = Margin{Top: "12mm", Right: "10mm", Bottom: "14mm", Left: "10mm"}
	MarginLarge  = Margin{Top: "20mm", Right: "15mm", Bottom: "20mm", Left: "15mm"}
)

// MarginPresets is keyed by preset name.
var MarginPresets = map[string]Margin{
	"small":  MarginSmall,
	"medium": MarginMedium,
	"large":  MarginLarge,
}

// MarginPreset resolves a preset name. Unknown names resolve to medium and
// report ok=false.
func MarginPreset(name string) (Margin, bool) {
	m, ok := MarginPresets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return MarginMedium, false
	}
	return m, true
}

// WithDefaults fills empty sides from medium.
func (m Margin) WithDefaults() Margin {
	if m.Top == "" {
		m.Top = MarginMedium.Top
	}
	if m.Right == "" {
		m.Right = MarginMedium.Right
	}
	if m.Bottom == "" {
		m.Bottom = MarginMedium.Bottom
	}
	if m.Left == "" {
		m.Left = MarginMedium.Left
	}
	return m
}

// LetterheadBrand identifies one of the built-in brand profiles.
type LetterheadBrand string

const (
	BrandTrivanta LetterheadBrand = "trivanta"
	BrandDazzlo   LetterheadBrand = "dazzlo"
)

// Brands lists the supported letterhead brands.
var Brands = []LetterheadBrand{BrandTrivanta, BrandDazzlo}

// ParseBrand matches s case-insensitively. An empty string yields trivanta.
func ParseBrand(s string) (LetterheadBrand, error) {
	switch LetterheadBrand(strings.ToLower(strings.TrimSpace(s))) {
	case "", BrandTrivanta:
		return BrandTrivanta, nil
	case BrandDazzlo:
		return BrandDazzlo, nil
	}
	return "", fmt.Errorf("%w: unsupported letterhead type %q", ErrInvalidOptions, s)
}

// LetterheadMode selects which pages carry the letterhead.
type LetterheadMode string

const (
	ModeAll   LetterheadMode = "all"
	ModeFirst LetterheadMode = "first"
)

// Modes lists the supported letterhead modes.
var Modes = []LetterheadMode{ModeAll, ModeFirst}

// ParseMode matches s case-insensitively. An empty string yields all.
func ParseMode(s string) (LetterheadMode, error) {
	switch LetterheadMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeFirst:
		return ModeFirst, nil
	}
	return "", fmt.Errorf("%w: unsupported letterhead mode %q", ErrInvalidOptions, s)
}

// Recommended scale range. Values outside it are accepted with a warning.
const (
	MinRecommendedScale = 0.8
	MaxRecommendedScale = 1.2
)

// Hard scale limits of the print engine.
const (
	minScale = 0.1
	maxScale = 2.0
)

// ConversionOptions is the normalized request shared by the CLI and HTTP shells.
type ConversionOptions struct {
	Format      PageFormat      `json:"format"`
	Orientation Orientation     `json:"orientation"`
	Margin      Margin          `json:"margin"`
	Scale       float64         `json:"scale"`
	Letterhead  bool            `json:"letterhead"`
	Brand       LetterheadBrand `json:"letterheadType"`
	Mode        LetterheadMode  `json:"letterheadMode"`
	AccessToken string          `json:"-"`
}

// DefaultOptions returns A4 portrait, medium margins, scale 1, no letterhead.
func DefaultOptions() ConversionOptions {
	return ConversionOptions{
		Format:      FormatA4,
		Orientation: Portrait,
		Margin:      MarginMedium,
		Scale:       1.0,
		Brand:       BrandTrivanta,
		Mode:        ModeAll,
	}
}

// Normalize fills zero values with defaults.
func (o ConversionOptions) Normalize() ConversionOptions {
	if o.Format == "" {
		o.Format = FormatA4
	}
	if o.Orientation == "" {
		o.Orientation = Portrait
	}
	o.Margin = o.Margin.WithDefaults()
	if o.Scale == 0 {
		o.Scale = 1.0
	}
	if o.Brand == "" {
		o.Brand = BrandTrivanta
	}
	if o.Mode == "" {
		o.Mode = ModeAll
	}
	return o
}

// Validate checks enum membership and the scale range.
func (o ConversionOptions) Validate() error {
	if _, err := ParsePageFormat(string(o.Format)); err != nil {
		return err
	}
	if o.Orientation != Portrait && o.Orientation != Landscape {
		return fmt.Errorf("%w: orientation must be portrait or landscape", ErrInvalidOptions)
	}
	if o.Scale < minScale || o.Scale > maxScale {
		return fmt.Errorf("%w: scale %.2f outside %.1f-%.1f", ErrInvalidOptions, o.Scale, minScale, maxScale)
	}
	if !o.Letterhead {
		return nil
	}
	if _, err := ParseBrand(string(o.Brand)); err != nil {
		return err
	}
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	return nil
}

// ScaleRecommended reports whether the scale is inside 0.8-1.2.
func (o ConversionOptions) ScaleRecommended() bool {
	return o.Scale >= MinRecommendedScale && o.Scale <= MaxRecommendedScale
}
