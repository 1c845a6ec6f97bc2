// Package letterhead renders brand letterheads. Brand differences are data
// (domain.BrandProfile); the two placement modes are Strategy values.
package letterhead

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	"time"

	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/logging"
	"dazzlodocs/internal/layout"
	"dazzlodocs/internal/printcss"
)

// FooterBand is the height reserved for the first-page footer.
const FooterBand = "12mm"

// Request is the input of a Strategy.
type Request struct {
	Brand       domain.BrandProfile
	Orientation domain.Orientation
	Margin      domain.Margin
	// PaperHeightIn is the page height after orientation is applied.
	PaperHeightIn float64
	// Scale is the print scale. CSS lengths are multiplied by it on paper.
	Scale float64
	// Logo is a data URI, or empty when the asset is unavailable.
	Logo string
	Year int
}

// Assets is the output of a Strategy.
type Assets struct {
	Mode         domain.LetterheadMode
	Brand        domain.LetterheadBrand
	HeaderMarkup string
	FooterMarkup string
	// Style is raw CSS for the document head.
	Style string
	// Margin is the reconciled margin the engine must print with.
	Margin domain.Margin
}

// NativeTemplates returns the engine header and footer templates. They are
// empty unless the mode places the letterhead on every page.
func (a *Assets) NativeTemplates() (header, footer string) {
	if a == nil || a.Mode != domain.ModeAll {
		return "", ""
	}
	return a.HeaderMarkup, a.FooterMarkup
}

// BodyFragment returns the markup inserted after <body> in first-page mode.
func (a *Assets) BodyFragment() string {
	if a == nil || a.Mode != domain.ModeFirst {
		return ""
	}
	return `<div class="lh-first" data-letterhead="` + string(a.Brand) + `">` + "\n" +
		a.HeaderMarkup + a.FooterMarkup + "</div>\n"
}

// Apply adds the letterhead style and, in first-page mode, the body fragment.
func (a *Assets) Apply(htmlContent string) string {
	if a == nil {
		return htmlContent
	}
	out := printcss.InjectStyle(htmlContent, a.Style)
	if frag := a.BodyFragment(); frag != "" {
		out = printcss.InsertAfterBodyOpen(out, frag)
	}
	return out
}

// Strategy builds the assets for one letterhead mode.
type Strategy interface {
	Mode() domain.LetterheadMode
	Build(req Request) (*Assets, error)
}

// StrategyFor returns the strategy for mode.
func StrategyFor(mode domain.LetterheadMode) (Strategy, error) {
	switch mode {
	case domain.ModeAll, "":
		return allPages{}, nil
	case domain.ModeFirst:
		return firstPage{}, nil
	}
	return nil, fmt.Errorf("%w: unsupported letterhead mode %q", domain.ErrInvalidOptions, mode)
}

// view is the data every template receives.
type view struct {
	Brand      domain.BrandProfile
	Sizes      domain.FontSizes
	Logo       htmltemplate.URL
	LogoPx     int
	Footer     string
	Padding    string
	Margin     domain.Margin
	FooterTop  string
	FooterBand string
}

func newView(req Request, margin domain.Margin) view {
	v := view{
		Brand:      req.Brand,
		Sizes:      req.Brand.Sizes(req.Orientation),
		Footer:     req.Brand.FooterLine(req.Year),
		Margin:     margin,
		FooterBand: FooterBand,
		LogoPx:     60,
		Padding:    "8mm 0 6mm 0",
	}
	if req.Orientation.IsLandscape() {
		v.LogoPx = 50
		v.Padding = "6mm 0 4mm 0"
	}
	// Only image data URIs are trusted in src attributes.
	if strings.HasPrefix(req.Logo, "data:image/") {
		v.Logo = htmltemplate.URL(req.Logo)
	}
	return v
}

type allPages struct{}

func (allPages) Mode() domain.LetterheadMode { return domain.ModeAll }

func (allPages) Build(req Request) (*Assets, error) {
	margin, err := layout.Reconcile(req.Margin, req.Orientation, domain.ModeAll)
	if err != nil {
		return nil, err
	}
	v := newView(req, margin)
	header, err := renderMarkup(tmplNativeHeader, v)
	if err != nil {
		return nil, err
	}
	footer, err := renderMarkup(tmplNativeFooter, v)
	if err != nil {
		return nil, err
	}
	style, err := renderStyle(tmplStyleAll, v)
	if err != nil {
		return nil, err
	}
	return &Assets{
		Mode:         domain.ModeAll,
		Brand:        req.Brand.Key,
		HeaderMarkup: header,
		FooterMarkup: footer,
		Style:        style,
		Margin:       margin,
	}, nil
}

type firstPage struct{}

func (firstPage) Mode() domain.LetterheadMode { return domain.ModeFirst }

func (firstPage) Build(req Request) (*Assets, error) {
	margin, err := layout.Reconcile(req.Margin, req.Orientation, domain.ModeFirst)
	if err != nil {
		return nil, err
	}
	v := newView(req, margin)
	if v.FooterTop, err = footerTop(req.PaperHeightIn, margin, req.Scale); err != nil {
		return nil, err
	}
	header, err := renderMarkup(tmplFlowHeader, v)
	if err != nil {
		return nil, err
	}
	footer, err := renderMarkup(tmplFlowFooter, v)
	if err != nil {
		return nil, err
	}
	style, err := renderStyle(tmplStyleFirst, v)
	if err != nil {
		return nil, err
	}
	return &Assets{
		Mode:         domain.ModeFirst,
		Brand:        req.Brand.Key,
		HeaderMarkup: header,
		FooterMarkup: footer,
		Style:        style,
		Margin:       margin,
	}, nil
}

// footerTop places the footer band at the bottom of the first page's
// content box, measured from the top of that box in CSS millimeters. The
// engine scales CSS lengths by scale, so the box is taller in CSS units
// below 1 and shorter above it.
func footerTop(paperHeightIn float64, m domain.Margin, scale float64) (string, error) {
	top, err := layout.ParseDimension(m.Top)
	if err != nil {
		return "", err
	}
	bottom, err := layout.ParseDimension(m.Bottom)
	if err != nil {
		return "", err
	}
	band, _ := layout.ParseDimension(FooterBand)
	if scale <= 0 {
		scale = 1
	}
	box := paperHeightIn*25.4 - top.Millimeters() - bottom.Millimeters()
	mm := box/scale - band.Millimeters()
	if mm < 0 {
		mm = 0
	}
	return layout.Dimension{Value: mm, Unit: "mm"}.String(), nil
}

// Generator resolves brand data and logos and runs the mode's strategy.
type Generator struct {
	logos LogoSource
	now   func() time.Time
}

// NewGenerator returns a Generator reading logos from logos. A nil source
// renders letterheads without a logo.
func NewGenerator(logos LogoSource) *Generator {
	return &Generator{logos: logos, now: time.Now}
}

// Build renders the letterhead for opts. paperHeightIn is the height of the
// page after orientation is applied.
func (g *Generator) Build(opts domain.ConversionOptions, paperHeightIn float64) (*Assets, error) {
	brand, err := domain.Brand(opts.Brand)
	if err != nil {
		return nil, err
	}
	strategy, err := StrategyFor(opts.Mode)
	if err != nil {
		return nil, err
	}
	return strategy.Build(Request{
		Brand:         brand,
		Orientation:   opts.Orientation,
		Margin:        opts.Margin,
		PaperHeightIn: paperHeightIn,
		Scale:         opts.Scale,
		Logo:          g.logo(brand),
		Year:          g.now().Year(),
	})
}

func (g *Generator) logo(brand domain.BrandProfile) string {
	if g.logos == nil {
		return ""
	}
	uri, err := g.logos.DataURI(brand.LogoAssetKey)
	if err != nil {
		logging.Warn("letterhead logo unavailable, rendering without it", "brand", string(brand.Key), "error", err)
		return ""
	}
	return uri
}
