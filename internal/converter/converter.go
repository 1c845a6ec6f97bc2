// Package converter turns HTML into PDF files. A Converter is shared by all
// requests; each Convert call owns its temp artifact and page context.
package converter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"

	"dazzlodocs/internal/auth"
	"dazzlodocs/internal/cache"
	"dazzlodocs/internal/config"
	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/logging"
	"dazzlodocs/internal/layout"
	"dazzlodocs/internal/letterhead"
	"dazzlodocs/internal/pdfinfo"
	"dazzlodocs/internal/printcss"
)

// Settings are the render bounds of a Converter.
type Settings struct {
	PaperSizes        map[string]config.PaperSize
	NavigationTimeout time.Duration
	PrintTimeout      time.Duration
	SettleDelay       time.Duration
	NavigationRetries int
	TempDir           string
	MaxHTMLBytes      int
	MaxPDFBytes       int
}

// SettingsFromConfig copies the relevant configuration.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		PaperSizes:        cfg.PDF.PaperSizes,
		NavigationTimeout: cfg.PDF.NavigationTimeout,
		PrintTimeout:      cfg.PDF.PrintTimeout,
		SettleDelay:       cfg.PDF.SettleDelay,
		NavigationRetries: cfg.PDF.NavigationRetries,
		TempDir:           cfg.PDF.TempDir,
		MaxHTMLBytes:      cfg.Limits.MaxHTMLBytes,
		MaxPDFBytes:       cfg.Limits.MaxPDFBytes,
	}
}

func (s Settings) withDefaults() Settings {
	if len(s.PaperSizes) == 0 {
		s.PaperSizes = config.DefaultPaperSizes()
	}
	if s.NavigationTimeout <= 0 {
		s.NavigationTimeout = 30 * time.Second
	}
	if s.PrintTimeout <= 0 {
		s.PrintTimeout = 60 * time.Second
	}
	if s.NavigationRetries < 0 {
		s.NavigationRetries = 0
	}
	if s.TempDir == "" {
		s.TempDir = os.TempDir()
	}
	if s.MaxHTMLBytes <= 0 {
		s.MaxHTMLBytes = 50 << 20
	}
	if s.MaxPDFBytes <= 0 {
		s.MaxPDFBytes = 200 << 20
	}
	return s
}

// Option configures a Converter.
type Option func(*Converter)

// WithCache enables the Redis PDF cache.
func WithCache(pc *cache.PDFCache) Option {
	return func(c *Converter) { c.cache = pc }
}

// Converter is the conversion orchestrator.
type Converter struct {
	engine      domain.Engine
	authorizer  auth.Authorizer
	letterheads *letterhead.Generator
	cache       *cache.PDFCache
	settings    Settings

	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a Converter. letterheads may be nil when no request asks for
// one; authorizer must be set whenever letterheads are used.
func New(engine domain.Engine, authorizer auth.Authorizer, letterheads *letterhead.Generator, settings Settings, opts ...Option) *Converter {
	c := &Converter{
		engine:      engine,
		authorizer:  authorizer,
		letterheads: letterheads,
		settings:    settings.withDefaults(),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// conversion carries the state of one Convert call.
type conversion struct {
	id    string
	stage Stage
}

func (cv *conversion) advance(s Stage) {
	cv.stage = s
	logging.Debug("Conversion stage", "id", cv.id, "stage", string(s))
}

func (cv *conversion) fail(err error) error {
	logging.Warn("Conversion failed", "id", cv.id, "stage", string(cv.stage), "error", err)
	return &StageError{Stage: cv.stage, Err: err}
}

// Convert renders in with opts and writes the PDF to outputPath. Errors wrap
// one of the domain sentinels and a *StageError naming the last stage reached.
func (c *Converter) Convert(ctx context.Context, in Input, opts domain.ConversionOptions, outputPath string) (*domain.ConversionResult, error) {
	cv := &conversion{id: xid.New().String(), stage: StageIdle}
	started := time.Now()
	logging.Info("Conversion started", "id", cv.id, "input", in.Describe(), "format", string(opts.Format), "letterhead", opts.Letterhead)

	if c.engine == nil {
		return nil, cv.fail(fmt.Errorf("%w: no engine configured", domain.ErrEngineUnavailable))
	}
	if outputPath == "" {
		return nil, cv.fail(fmt.Errorf("%w: output path is empty", domain.ErrInvalidOptions))
	}
	if err := in.validate(); err != nil {
		return nil, cv.fail(err)
	}
	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, cv.fail(err)
	}
	if !opts.ScaleRecommended() {
		logging.Warn("Scale outside recommended range", "id", cv.id, "scale", opts.Scale,
			"min", domain.MinRecommendedScale, "max", domain.MaxRecommendedScale)
	}
	// Unauthorized requests never reach the engine, URL inputs included.
	if opts.Letterhead {
		if err := c.authorize(ctx, opts.AccessToken); err != nil {
			return nil, cv.fail(err)
		}
	}

	html, err := c.acquire(ctx, in)
	if err != nil {
		return nil, cv.fail(err)
	}
	cv.advance(StageInputAcquired)

	html = printcss.Inject(html)
	cv.advance(StageStylesInjected)

	params, err := c.printParams(opts)
	if err != nil {
		return nil, cv.fail(err)
	}
	if opts.Letterhead {
		html, err = c.applyLetterhead(html, opts, &params)
		if err != nil {
			return nil, cv.fail(err)
		}
		cv.advance(StageLetterheadPrepared)
	}

	var pdf []byte
	cached := false
	key := cache.Key(html, params)
	if data, ok := c.cache.Get(ctx, key); ok {
		pdf, cached = data, true
	} else {
		pdf, err = c.renderWithRestart(ctx, cv, html, params)
		if err != nil {
			return nil, cv.fail(err)
		}
	}
	if len(pdf) == 0 {
		return nil, cv.fail(fmt.Errorf("%w: engine returned an empty document", domain.ErrConversion))
	}
	if len(pdf) > c.settings.MaxPDFBytes {
		return nil, cv.fail(fmt.Errorf("%w: pdf of %d bytes exceeds limit %d", domain.ErrConversion, len(pdf), c.settings.MaxPDFBytes))
	}
	if !cached {
		c.cache.Set(ctx, key, pdf)
	}
	cv.advance(StageRendered)

	if err := writeOutput(outputPath, pdf); err != nil {
		return nil, cv.fail(err)
	}
	cv.advance(StagePersisted)

	pages, exact := pdfinfo.PageCount(pdf)
	cv.advance(StageCountObtained)

	cv.advance(StageDone)
	logging.Info("Conversion finished", "id", cv.id, "output", outputPath, "bytes", len(pdf),
		"pages", pages, "cached", cached, "duration", time.Since(started).String())
	return &domain.ConversionResult{
		OutputPath:     outputPath,
		FileSizeBytes:  int64(len(pdf)),
		PageCount:      pages,
		PageCountExact: exact,
		Cached:         cached,
	}, nil
}

func (c *Converter) authorize(ctx context.Context, token string) error {
	if c.authorizer == nil {
		return fmt.Errorf("%w: no authorizer configured", domain.ErrUnauthorized)
	}
	ok, err := c.authorizer.Authorize(ctx, token)
	if err != nil {
		return fmt.Errorf("verify letterhead token: %w", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

func (c *Converter) printParams(opts domain.ConversionOptions) (domain.PrintParams, error) {
	paper, ok := c.settings.PaperSizes[opts.Format.Key()]
	if !ok {
		return domain.PrintParams{}, fmt.Errorf("%w: paper size %s not configured", domain.ErrInvalidOptions, opts.Format)
	}
	if opts.Orientation.IsLandscape() {
		paper.Width, paper.Height = paper.Height, paper.Width
	}
	p := domain.PrintParams{PaperWidth: paper.Width, PaperHeight: paper.Height, Scale: opts.Scale}
	if err := setMargins(&p, opts.Margin); err != nil {
		return domain.PrintParams{}, err
	}
	return p, nil
}

func setMargins(p *domain.PrintParams, m domain.Margin) error {
	top, right, bottom, left, err := layout.Inches(m)
	if err != nil {
		return err
	}
	p.MarginTop, p.MarginRight, p.MarginBottom, p.MarginLeft = top, right, bottom, left
	return nil
}

func (c *Converter) applyLetterhead(html string, opts domain.ConversionOptions, p *domain.PrintParams) (string, error) {
	if c.letterheads == nil {
		return "", fmt.Errorf("%w: letterheads are not configured", domain.ErrInvalidOptions)
	}
	assets, err := c.letterheads.Build(opts, p.PaperHeight)
	if err != nil {
		return "", err
	}
	if err := setMargins(p, assets.Margin); err != nil {
		return "", err
	}
	p.HeaderTemplate, p.FooterTemplate = assets.NativeTemplates()
	return assets.Apply(html), nil
}

// renderWithRestart relaunches the engine once when the browser session
// died under the render.
func (c *Converter) renderWithRestart(ctx context.Context, cv *conversion, html string, p domain.PrintParams) ([]byte, error) {
	pdf, err := c.render(ctx, cv, html, p)
	if err == nil || !errors.Is(err, domain.ErrEngineUnavailable) {
		return pdf, err
	}
	r, ok := c.engine.(domain.Restarter)
	if !ok {
		return nil, err
	}
	logging.Warn("Render engine session interrupted, restarting", "id", cv.id, "error", err)
	if rerr := r.Restart(); rerr != nil {
		return nil, fmt.Errorf("%w: restart failed: %v (after %v)", domain.ErrEngineUnavailable, rerr, err)
	}
	return c.render(ctx, cv, html, p)
}

func (c *Converter) render(ctx context.Context, cv *conversion, html string, p domain.PrintParams) ([]byte, error) {
	tmp, err := c.writeTemp(cv.id, html)
	if err != nil {
		return nil, err
	}
	defer removeTemp(tmp)

	page, err := c.openPage(ctx)
	if err != nil {
		return nil, err
	}
	defer c.closePage(page)

	if err := c.navigate(ctx, page, fileURL(tmp)); err != nil {
		return nil, err
	}
	if err := c.waitForImages(ctx, page); err != nil {
		logging.Warn("Images did not settle before print", "id", cv.id, "error", err)
	}
	if c.settings.SettleDelay > 0 {
		if err := c.sleep(ctx, c.settings.SettleDelay); err != nil {
			return nil, c.classify("settle", err)
		}
	}

	printCtx, cancel := context.WithTimeout(ctx, c.settings.PrintTimeout)
	defer cancel()
	pdf, err := page.PrintPDF(printCtx, p)
	if err != nil {
		return nil, c.classify("print", err)
	}
	return pdf, nil
}

func (c *Converter) openPage(ctx context.Context) (domain.Page, error) {
	page, err := c.engine.OpenPage(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrEngineUnavailable) {
			return nil, err
		}
		return nil, c.classify("open page", err)
	}
	return page, nil
}

func (c *Converter) closePage(page domain.Page) {
	if err := page.Close(); err != nil {
		logging.Warn("Failed to close page", "error", err)
	}
}

// navigate tries 1+NavigationRetries times, each bounded by the navigation
// timeout. Engine loss and parent cancellation are not retried.
func (c *Converter) navigate(ctx context.Context, page domain.Page, target string) error {
	attempts := c.settings.NavigationRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		navCtx, cancel := context.WithTimeout(ctx, c.settings.NavigationTimeout)
		err = page.Navigate(navCtx, target)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, domain.ErrEngineUnavailable) || attempt == attempts {
			break
		}
		logging.Warn("Navigation failed, retrying", "attempt", attempt, "of", attempts, "error", err)
		if serr := c.sleep(ctx, time.Duration(attempt)*250*time.Millisecond); serr != nil {
			break
		}
	}
	return c.classify("navigate", err)
}

func (c *Converter) waitForImages(ctx context.Context, page domain.Page) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.settings.NavigationTimeout)
	defer cancel()
	return page.WaitForImages(waitCtx)
}

// classify maps engine errors onto the domain taxonomy.
func (c *Converter) classify(step string, err error) error {
	switch {
	case errors.Is(err, domain.ErrEngineUnavailable),
		errors.Is(err, domain.ErrRenderTimeout),
		errors.Is(err, domain.ErrConversion):
		return fmt.Errorf("%s: %w", step, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", domain.ErrRenderTimeout, step, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrConversion, step, err)
}

func (c *Converter) writeTemp(id, html string) (string, error) {
	if err := os.MkdirAll(c.settings.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create temp dir: %v", domain.ErrIO, err)
	}
	path := filepath.Join(c.settings.TempDir, "render-"+id+".html")
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		return "", fmt.Errorf("%w: write temp artifact: %v", domain.ErrIO, err)
	}
	return path, nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to remove temp artifact", "path", path, "error", err)
	}
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return (&url.URL{Scheme: "file", Path: path}).String()
}

func writeOutput(path string, pdf []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create output dir: %v", domain.ErrIO, err)
		}
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrIO, path, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
