package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"dazzlodocs/internal/domain"
)

// waitImagesJS resolves once every image has loaded or failed.
const waitImagesJS = `Promise.all(Array.from(document.images)
  .filter(img => !img.complete)
  .map(img => new Promise(resolve => {
    img.addEventListener('load', resolve, {once: true});
    img.addEventListener('error', resolve, {once: true});
  }))).then(() => document.images.length)`

// emptyTemplate stops Chrome from printing its default title and date
// when only one of header or footer is set.
const emptyTemplate = "<span></span>"

type tab struct {
	ctx        context.Context
	cancel     context.CancelFunc
	browserCtx context.Context

	createOnce sync.Once
	createErr  error
	closeOnce  sync.Once
	release    func()
}

// tabCreateTimeout bounds target creation when the caller has no deadline.
const tabCreateTimeout = 30 * time.Second

// run executes actions in the tab, bounded by ctx. The tab target is
// created on first use with the tab context itself so that per-call
// deadlines never end the tab.
func (t *tab) run(ctx context.Context, actions ...chromedp.Action) error {
	t.createOnce.Do(func() { t.createErr = t.create(ctx) })
	if t.createErr != nil {
		return t.wrap(ctx, t.createErr)
	}

	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return t.wrap(ctx, err)
	}
	return nil
}

// create starts the target on t.ctx. When ctx ends or creation takes
// longer than tabCreateTimeout the tab is cancelled, since the target
// cannot outlive t.ctx anyway.
func (t *tab) create(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- startTarget(t.ctx) }()

	timer := time.NewTimer(tabCreateTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	case <-ctx.Done():
	}
	if t.cancel != nil {
		t.cancel()
	}
	<-done
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: tab not created after %s", domain.ErrEngineUnavailable, tabCreateTimeout)
}

func (t *tab) wrap(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	if t.browserCtx.Err() != nil || (t.ctx.Err() != nil && IsSessionInterrupted(err)) {
		return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	return err
}

// Navigate loads url and waits for DOM ready and network idle of the new
// document.
func (t *tab) Navigate(ctx context.Context, url string) error {
	watch := newLifecycleWatch()
	return t.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			chromedp.ListenTarget(ctx, watch.observe)
			return page.SetLifecycleEventsEnabled(true).Do(ctx)
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return watch.wait(ctx, tree.Frame.ID, tree.Frame.LoaderID, "networkIdle")
		}),
	)
}

func (t *tab) WaitForImages(ctx context.Context) error {
	var n int
	return t.run(ctx, chromedp.Evaluate(waitImagesJS, &n, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

func (t *tab) Content(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return "<!DOCTYPE html>\n" + html, nil
}

func (t *tab) PrintPDF(ctx context.Context, params domain.PrintParams) ([]byte, error) {
	var buf []byte
	err := t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = printToPDF(params).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// printToPDF maps engine-neutral params onto Page.printToPDF.
func printToPDF(p domain.PrintParams) *page.PrintToPDFParams {
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	params := page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(p.PaperWidth).
		WithPaperHeight(p.PaperHeight).
		WithMarginTop(p.MarginTop).
		WithMarginRight(p.MarginRight).
		WithMarginBottom(p.MarginBottom).
		WithMarginLeft(p.MarginLeft).
		WithScale(scale)
	if p.DisplayHeaderFooter() {
		header, footer := p.HeaderTemplate, p.FooterTemplate
		if header == "" {
			header = emptyTemplate
		}
		if footer == "" {
			footer = emptyTemplate
		}
		params = params.
			WithDisplayHeaderFooter(true).
			WithHeaderTemplate(header).
			WithFooterTemplate(footer)
	}
	return params
}

// Close closes the tab and frees its slot. Safe to call more than once.
func (t *tab) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		if t.release != nil {
			t.release()
		}
	})
	return nil
}

// lifecycleWatch records lifecycle events per frame and loader.
type lifecycleWatch struct {
	mu     sync.Mutex
	seen   map[string]bool
	notify chan struct{}
}

func newLifecycleWatch() *lifecycleWatch {
	return &lifecycleWatch{seen: map[string]bool{}, notify: make(chan struct{}, 1)}
}

func lifecycleKey(frame cdp.FrameID, loader cdp.LoaderID, name string) string {
	return string(frame) + "/" + string(loader) + "/" + name
}

func (w *lifecycleWatch) observe(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	w.mu.Lock()
	w.seen[lifecycleKey(e.FrameID, e.LoaderID, e.Name)] = true
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *lifecycleWatch) has(frame cdp.FrameID, loader cdp.LoaderID, name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen[lifecycleKey(frame, loader, name)]
}

func (w *lifecycleWatch) wait(ctx context.Context, frame cdp.FrameID, loader cdp.LoaderID, name string) error {
	for {
		if w.has(frame, loader, name) {
			return nil
		}
		select {
		case <-w.notify:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", name, ctx.Err())
		}
	}
}
