package domain

import "context"

// PrintParams are the engine-level print settings. Dimensions are inches.
type PrintParams struct {
	PaperWidth     float64
	PaperHeight    float64
	MarginTop      float64
	MarginRight    float64
	MarginBottom   float64
	MarginLeft     float64
	Scale          float64
	HeaderTemplate string
	FooterTemplate string
}

// DisplayHeaderFooter reports whether native templates were supplied.
func (p PrintParams) DisplayHeaderFooter() bool {
	return p.HeaderTemplate != "" || p.FooterTemplate != ""
}

// Engine is the shared, process-scoped render engine.
type Engine interface {
	// OpenPage returns an isolated page context. It may block until the
	// engine has capacity or ctx is done.
	OpenPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one isolated render context owned by a single conversion.
type Page interface {
	// Navigate loads url and returns once the DOM is parsed and the network
	// is idle.
	Navigate(ctx context.Context, url string) error
	// WaitForImages blocks until every image has loaded or errored.
	WaitForImages(ctx context.Context) error
	// Content serializes the current DOM.
	Content(ctx context.Context) (string, error)
	PrintPDF(ctx context.Context, params PrintParams) ([]byte, error)
	Close() error
}

// Restarter is implemented by engines that can relaunch their browser after
// a crashed session.
type Restarter interface {
	Restart() error
}
