package converter

import (
	"context"
	"net/url"
	"os"
	"strings"
	"sync"

	"dazzlodocs/internal/domain"
)

// minimalPDF carries a one-page page tree for the page counter.
var minimalPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Pages /Kids [2 0 R] /Count 1 >>\nendobj\n%%EOF\n")

type fakeEngine struct {
	mu sync.Mutex

	openErrs  []error
	navErrs   []error
	printErr  error
	pdf       []byte
	content   string
	restarts  int
	opened    int
	pages     []*fakePage
	navigated []string
	printed   []domain.PrintParams
	documents []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{pdf: minimalPDF}
}

func (e *fakeEngine) OpenPage(ctx context.Context) (domain.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.openErrs) > 0 {
		err := e.openErrs[0]
		e.openErrs = e.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	e.opened++
	p := &fakePage{engine: e}
	e.pages = append(e.pages, p)
	return p, nil
}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) Restart() error {
	e.mu.Lock()
	e.restarts++
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) allClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pages {
		if !p.closed {
			return false
		}
	}
	return true
}

type fakePage struct {
	engine *fakeEngine
	closed bool
}

func (p *fakePage) Navigate(ctx context.Context, target string) error {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.navigated = append(e.navigated, target)
	if len(e.navErrs) > 0 {
		err := e.navErrs[0]
		e.navErrs = e.navErrs[1:]
		if err != nil {
			return err
		}
	}
	if strings.HasPrefix(target, "file://") {
		u, err := url.Parse(target)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(u.Path)
		if err != nil {
			return err
		}
		e.documents = append(e.documents, string(raw))
	}
	return nil
}

func (p *fakePage) WaitForImages(ctx context.Context) error { return nil }

func (p *fakePage) Content(ctx context.Context) (string, error) {
	return p.engine.content, nil
}

func (p *fakePage) PrintPDF(ctx context.Context, params domain.PrintParams) ([]byte, error) {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.printed = append(e.printed, params)
	if e.printErr != nil {
		return nil, e.printErr
	}
	return e.pdf, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}
