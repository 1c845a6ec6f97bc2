package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageFormat(t *testing.T) {
	f, err := ParsePageFormat("letter")
	require.NoError(t, err)
	assert.Equal(t, FormatLetter, f)
	assert.Equal(t, "LETTER", f.Key())

	f, err = ParsePageFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatA4, f)

	_, err = ParsePageFormat("B0")
	assert.True(t, errors.Is(err, ErrInvalidOptions))
}

func TestParseBrandAndMode(t *testing.T) {
	b, err := ParseBrand("Dazzlo")
	require.NoError(t, err)
	assert.Equal(t, BrandDazzlo, b)

	b, err = ParseBrand("")
	require.NoError(t, err)
	assert.Equal(t, BrandTrivanta, b)

	_, err = ParseBrand("acme")
	assert.ErrorIs(t, err, ErrInvalidOptions)

	m, err := ParseMode("FIRST")
	require.NoError(t, err)
	assert.Equal(t, ModeFirst, m)

	_, err = ParseMode("odd")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestMarginPreset(t *testing.T) {
	m, ok := MarginPreset("large")
	assert.True(t, ok)
	assert.Equal(t, MarginLarge, m)

	m, ok = MarginPreset("huge")
	assert.False(t, ok)
	assert.Equal(t, MarginMedium, m)
}

func TestNormalizeAndValidate(t *testing.T) {
	o := ConversionOptions{Margin: Margin{Top: "5mm"}}.Normalize()
	assert.Equal(t, FormatA4, o.Format)
	assert.Equal(t, Portrait, o.Orientation)
	assert.Equal(t, "5mm", o.Margin.Top)
	assert.Equal(t, MarginMedium.Bottom, o.Margin.Bottom)
	assert.Equal(t, 1.0, o.Scale)
	require.NoError(t, o.Validate())

	bad := o
	bad.Scale = 3
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOptions)

	bad = o
	bad.Orientation = "diagonal"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOptions)

	bad = o
	bad.Letterhead = true
	bad.Mode = "sometimes"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOptions)
}

func TestScaleRecommended(t *testing.T) {
	o := DefaultOptions()
	assert.True(t, o.ScaleRecommended())
	o.Scale = 1.5
	assert.False(t, o.ScaleRecommended())
}

func TestBrandProfiles(t *testing.T) {
	d, err := Brand(BrandDazzlo)
	require.NoError(t, err)
	assert.Equal(t, "Dazzlo Enterprises Pvt Ltd", d.DisplayName)
	assert.Equal(t, "info@dazzlo.co.in", d.FooterLine(2025))
	assert.Equal(t, 20, d.Sizes(Landscape).Name)

	tr, err := Brand(BrandTrivanta)
	require.NoError(t, err)
	assert.Equal(t, "© 2025 Trivanta Edge. All rights reserved.", tr.FooterLine(2025))
	assert.Len(t, tr.ContactLines, 4)

	// Profiles are copies.
	tr.ContactLines[0] = "changed"
	again, _ := Brand(BrandTrivanta)
	assert.Equal(t, "sales@trivantaedge.com", again.ContactLines[0])

	_, err = Brand("acme")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
