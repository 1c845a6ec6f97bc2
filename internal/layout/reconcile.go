package layout

import (
	"fmt"

	"dazzlodocs/internal/domain"
)

// Allowance is the extra space reserved for the letterhead bands.
type Allowance struct {
	Top    string
	Bottom string
}

// Tunable defaults. Native templates live in the page margins, so "all"
// widens them; "first" puts the header in the document flow instead.
var allowances = map[domain.LetterheadMode]map[domain.Orientation]Allowance{
	domain.ModeAll: {
		domain.Portrait:  {Top: "30mm", Bottom: "10mm"},
		domain.Landscape: {Top: "25mm", Bottom: "10mm"},
	},
	domain.ModeFirst: {
		domain.Portrait:  {Top: "0mm", Bottom: "0mm"},
		domain.Landscape: {Top: "0mm", Bottom: "0mm"},
	},
}

// AllowanceFor returns the band allowance for mode and orientation.
func AllowanceFor(mode domain.LetterheadMode, o domain.Orientation) (Allowance, error) {
	byOrientation, ok := allowances[mode]
	if !ok {
		return Allowance{}, fmt.Errorf("%w: unsupported letterhead mode %q", domain.ErrInvalidOptions, mode)
	}
	a, ok := byOrientation[o]
	if !ok {
		return Allowance{}, fmt.Errorf("%w: unsupported orientation %q", domain.ErrInvalidOptions, o)
	}
	return a, nil
}

// Reconcile widens the requested margins by the letterhead allowance.
// Left and right margins are returned unchanged.
func Reconcile(m domain.Margin, o domain.Orientation, mode domain.LetterheadMode) (domain.Margin, error) {
	a, err := AllowanceFor(mode, o)
	if err != nil {
		return domain.Margin{}, err
	}
	return Widen(m.WithDefaults(), a)
}

// Widen adds a to the top and bottom of m.
func Widen(m domain.Margin, a Allowance) (domain.Margin, error) {
	top, err := AddMargin(m.Top, a.Top)
	if err != nil {
		return domain.Margin{}, fmt.Errorf("top margin: %w", err)
	}
	bottom, err := AddMargin(m.Bottom, a.Bottom)
	if err != nil {
		return domain.Margin{}, fmt.Errorf("bottom margin: %w", err)
	}
	m.Top = top
	m.Bottom = bottom
	return m, nil
}

// Inches converts every side of m to inches.
func Inches(m domain.Margin) (top, right, bottom, left float64, err error) {
	m = m.WithDefaults()
	if top, err = ToInches(m.Top); err != nil {
		return
	}
	if right, err = ToInches(m.Right); err != nil {
		return
	}
	if bottom, err = ToInches(m.Bottom); err != nil {
		return
	}
	left, err = ToInches(m.Left)
	return
}
