package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dazzlodocs/internal/domain"
)

func TestAddMargin_SumsAndKeepsBaseUnit(t *testing.T) {
	tests := []struct {
		base, add, want string
	}{
		{"12mm", "30mm", "42mm"},
		{"14mm", "10mm", "24mm"},
		{"12", "25", "37mm"},
		{"1.5cm", "5mm", "2cm"},
		{"1in", "25.4mm", "2in"},
		{"0.4in", "0.1in", "0.5in"},
		{"10.5mm", "0.25mm", "10.75mm"},
	}
	for _, tc := range tests {
		t.Run(tc.base+"+"+tc.add, func(t *testing.T) {
			got, err := AddMargin(tc.base, tc.add)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAddMargin_NumericPartIsSumForSharedUnit(t *testing.T) {
	for base := 0.0; base <= 40; base += 2.5 {
		for add := 0.0; add <= 35; add += 5 {
			b := Dimension{Value: base, Unit: "mm"}.String()
			a := Dimension{Value: add, Unit: "mm"}.String()
			got, err := AddMargin(b, a)
			require.NoError(t, err)
			d, err := ParseDimension(got)
			require.NoError(t, err)
			assert.Equal(t, "mm", d.Unit)
			assert.InDelta(t, base+add, d.Value, 1e-9)
		}
	}
}

func TestAddMargin_RejectsBadInput(t *testing.T) {
	for _, in := range [][2]string{{"abc", "1mm"}, {"1mm", "2em"}, {"12furlongs", "1mm"}, {"", "1mm"}} {
		_, err := AddMargin(in[0], in[1])
		assert.ErrorIs(t, err, domain.ErrInvalidOptions, "input %v", in)
	}
}

func TestParseDimension_RejectsNegative(t *testing.T) {
	for _, in := range []string{"-5mm", "-0.1in", "-12", " -3 cm"} {
		_, err := ParseDimension(in)
		assert.ErrorIs(t, err, domain.ErrInvalidOptions, "input %q", in)
	}
	d, err := ParseDimension("+5mm")
	require.NoError(t, err)
	assert.Equal(t, 5.0, d.Value)
	d, err = ParseDimension("0")
	require.NoError(t, err)
	assert.Zero(t, d.Value)

	_, err = AddMargin("12mm", "-2mm")
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestDimensionConversions(t *testing.T) {
	d, err := ParseDimension("25.4mm")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d.Inches(), 1e-9)

	px, err := ParseDimension("96px")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, px.Inches(), 1e-9)

	pt, err := ParseDimension("72PT")
	require.NoError(t, err)
	assert.Equal(t, "pt", pt.Unit)
	assert.InDelta(t, 25.4, pt.Millimeters(), 1e-9)

	_, err = d.In("em")
	assert.Error(t, err)
}
