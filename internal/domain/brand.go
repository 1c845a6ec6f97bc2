package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FontSizes are CSS pixel sizes for the letterhead text blocks.
type FontSizes struct {
	Name    int
	Tagline int
	Contact int
	Footer  int
}

// BrandProfile is the read-only data behind one letterhead.
type BrandProfile struct {
	Key          LetterheadBrand
	DisplayName  string
	ShortName    string
	Tagline      string
	ContactLines []string
	FooterText   string
	Website      string
	AccentColor  string
	TextColor    string
	MutedColor   string
	LogoAssetKey string
	Portrait     FontSizes
	Landscape    FontSizes
}

// Sizes returns the font sizes for the given orientation.
func (b BrandProfile) Sizes(o Orientation) FontSizes {
	if o.IsLandscape() {
		return b.Landscape
	}
	return b.Portrait
}

var brandProfiles = map[LetterheadBrand]BrandProfile{
	BrandTrivanta: {
		Key:         BrandTrivanta,
		DisplayName: "Trivanta Edge",
		ShortName:   "Trivanta Edge",
		Tagline:     "From Land to Legacy – with Edge",
		ContactLines: []string{
			"sales@trivantaedge.com",
			"info@trivantaedge.com",
			"+91 9373015503",
			"Kalyan, Maharashtra",
		},
		FooterText:   "© {year} Trivanta Edge. All rights reserved.",
		Website:      "www.trivantaedge.com",
		AccentColor:  "#2c5282",
		TextColor:    "#1a365d",
		MutedColor:   "#2c5282",
		LogoAssetKey: "trivanta.png",
		Portrait:     FontSizes{Name: 22, Tagline: 11, Contact: 10, Footer: 10},
		Landscape:    FontSizes{Name: 18, Tagline: 9, Contact: 8, Footer: 9},
	},
	BrandDazzlo: {
		Key:         BrandDazzlo,
		DisplayName: "Dazzlo Enterprises Pvt Ltd",
		ShortName:   "Dazzlo Enterprises",
		Tagline:     "Redefining lifestyle with Innovations and Dreams",
		ContactLines: []string{
			"Tel: +91 9373015503",
			"Email: info@dazzlo.co.in",
			"Address: Kalyan, Maharashtra 421301",
		},
		FooterText:   "info@dazzlo.co.in",
		Website:      "www.dazzlo.co.in",
		AccentColor:  "#d4af37",
		TextColor:    "#333333",
		MutedColor:   "#666666",
		LogoAssetKey: "logo.png",
		Portrait:     FontSizes{Name: 24, Tagline: 13, Contact: 12, Footer: 10},
		Landscape:    FontSizes{Name: 20, Tagline: 11, Contact: 10, Footer: 9},
	},
}

// Brand returns a copy of the profile for b.
func Brand(b LetterheadBrand) (BrandProfile, error) {
	p, ok := brandProfiles[b]
	if !ok {
		return BrandProfile{}, fmt.Errorf("%w: unknown letterhead brand %q", ErrInvalidOptions, b)
	}
	p.ContactLines = append([]string(nil), p.ContactLines...)
	return p, nil
}

// FooterLine renders the footer text, substituting {year}.
func (b BrandProfile) FooterLine(year int) string {
	return strings.ReplaceAll(b.FooterText, "{year}", strconv.Itoa(year))
}
