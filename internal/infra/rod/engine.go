// Package rod is a render engine backed by go-rod. It is selected with
// pdf.engine: rod.
package rod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/logging"
)

const waitImagesJS = `() => Promise.all(Array.from(document.images)
  .filter(img => !img.complete)
  .map(img => new Promise(resolve => {
    img.addEventListener('load', resolve, {once: true});
    img.addEventListener('error', resolve, {once: true});
  }))).then(() => document.images.length)`

// Options configure the rod browser.
type Options struct {
	BrowserBin  string
	NoSandbox   bool
	MaxPages    int
	UserDataDir string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		BrowserBin:  cfg.PDF.ChromePath,
		NoSandbox:   cfg.PDF.ChromeNoSandbox,
		MaxPages:    cfg.PDF.MaxPages,
		UserDataDir: cfg.PDF.UserDataDir,
	}
}

// Engine implements domain.Engine. The browser is launched lazily and
// shared by all pages.
type Engine struct {
	opts Options
	sem  chan struct{}

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	closed   bool
}

var (
	_ domain.Engine    = (*Engine)(nil)
	_ domain.Restarter = (*Engine)(nil)
)

func New(opts Options) (*Engine, error) {
	if opts.MaxPages <= 0 {
		return nil, fmt.Errorf("rod: max pages must be > 0")
	}
	e := &Engine{opts: opts, sem: make(chan struct{}, opts.MaxPages)}
	for i := 0; i < opts.MaxPages; i++ {
		e.sem <- struct{}{}
	}
	return e, nil
}

// ensureBrowserLocked lazily launches and connects to the browser.
func (e *Engine) ensureBrowserLocked() error {
	if e.closed {
		return fmt.Errorf("%w: browser closed", domain.ErrEngineUnavailable)
	}
	if e.browser != nil {
		return nil
	}

	l := launcher.New().Headless(true)
	if e.opts.BrowserBin != "" {
		l = l.Bin(e.opts.BrowserBin)
	}
	if e.opts.NoSandbox {
		l = l.NoSandbox(true)
	}
	if e.opts.UserDataDir != "" {
		l = l.UserDataDir(e.opts.UserDataDir)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: launch browser: %v", domain.ErrEngineUnavailable, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("%w: connect browser: %v", domain.ErrEngineUnavailable, err)
	}
	e.launcher = l
	e.browser = browser
	logging.Info("Rod browser started", "max_pages", cap(e.sem))
	return nil
}

func (e *Engine) OpenPage(ctx context.Context) (domain.Page, error) {
	select {
	case <-e.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { e.sem <- struct{}{} }

	e.mu.Lock()
	if err := e.ensureBrowserLocked(); err != nil {
		e.mu.Unlock()
		release()
		return nil, err
	}
	browser := e.browser
	e.mu.Unlock()

	p, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: create page: %v", domain.ErrEngineUnavailable, err)
	}
	return &page{page: p, release: release}, nil
}

// Restart drops the current browser; the next OpenPage launches a new one.
func (e *Engine) Restart() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("%w: browser closed", domain.ErrEngineUnavailable)
	}
	e.shutdownLocked()
	logging.Warn("Rod browser restarted")
	return nil
}

func (e *Engine) shutdownLocked() {
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			logging.Warn("Failed to close rod browser", "error", err)
		}
		e.browser = nil
	}
	if e.launcher != nil {
		e.launcher.Kill()
		e.launcher.Cleanup()
		e.launcher = nil
	}
}

// Close is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.shutdownLocked()
	return nil
}

type page struct {
	page      *rod.Page
	closeOnce sync.Once
	release   func()
}

func (p *page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := pg.Navigate(url); err != nil {
		return wrap(ctx, err)
	}
	wait()
	if err := pg.WaitLoad(); err != nil {
		return wrap(ctx, err)
	}
	return nil
}

func (p *page) WaitForImages(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(waitImagesJS)
	return wrap(ctx, err)
}

func (p *page) Content(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", wrap(ctx, err)
	}
	return html, nil
}

func (p *page) PrintPDF(ctx context.Context, params domain.PrintParams) ([]byte, error) {
	r, err := p.page.Context(ctx).PDF(printOptions(params))
	if err != nil {
		return nil, wrap(ctx, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", domain.ErrConversion, err)
	}
	return data, nil
}

func (p *page) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.page.Close()
		p.release()
	})
	return err
}

// printOptions maps engine-neutral params onto proto.PagePrintToPDF.
func printOptions(p domain.PrintParams) *proto.PagePrintToPDF {
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	opts := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(p.PaperWidth),
		PaperHeight:     floatPtr(p.PaperHeight),
		MarginTop:       floatPtr(p.MarginTop),
		MarginRight:     floatPtr(p.MarginRight),
		MarginBottom:    floatPtr(p.MarginBottom),
		MarginLeft:      floatPtr(p.MarginLeft),
		Scale:           floatPtr(scale),
		PrintBackground: true,
	}
	if p.DisplayHeaderFooter() {
		opts.DisplayHeaderFooter = true
		opts.HeaderTemplate = orEmpty(p.HeaderTemplate)
		opts.FooterTemplate = orEmpty(p.FooterTemplate)
	}
	return opts
}

func orEmpty(tmpl string) string {
	if tmpl == "" {
		return "<span></span>"
	}
	return tmpl
}

func floatPtr(v float64) *float64 {
	return &v
}

// wrap attributes err to the caller's context when it is done and to the
// engine when the browser connection is gone.
func wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	if browserGone(err) {
		return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	return err
}

// browserGone reports errors from a closed or crashed browser connection.
func browserGone(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection closed", "target closed", "session closed", "session with given id not found", "browser has disconnected", "websocket", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
