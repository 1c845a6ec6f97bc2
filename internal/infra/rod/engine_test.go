package rod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/domain"
)

func TestNew(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	e, err := New(Options{MaxPages: 3})
	require.NoError(t, err)
	assert.Len(t, e.sem, 3)
	assert.NoError(t, e.Close())
	assert.NoError(t, e.Close())
}

func TestClosedEngine(t *testing.T) {
	e, err := New(Options{MaxPages: 1})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.OpenPage(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
	assert.Len(t, e.sem, 1, "slot must be returned")
	assert.ErrorIs(t, e.Restart(), domain.ErrEngineUnavailable)
}

func TestOpenPage_NoCapacity(t *testing.T) {
	e := &Engine{sem: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.OpenPage(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRestartWithoutBrowser(t *testing.T) {
	e, err := New(Options{MaxPages: 1})
	require.NoError(t, err)
	assert.NoError(t, e.Restart())
}

func TestPrintOptions(t *testing.T) {
	o := printOptions(domain.PrintParams{PaperWidth: 8.5, PaperHeight: 11, MarginTop: 1, FooterTemplate: "<div>f</div>"})
	assert.Equal(t, 8.5, *o.PaperWidth)
	assert.Equal(t, 11.0, *o.PaperHeight)
	assert.Equal(t, 1.0, *o.MarginTop)
	assert.Equal(t, 1.0, *o.Scale)
	assert.True(t, o.PrintBackground)
	assert.True(t, o.DisplayHeaderFooter)
	assert.Equal(t, "<span></span>", o.HeaderTemplate)
	assert.Equal(t, "<div>f</div>", o.FooterTemplate)

	o = printOptions(domain.PrintParams{PaperWidth: 1, PaperHeight: 1, Scale: 0.8})
	assert.False(t, o.DisplayHeaderFooter)
	assert.Equal(t, 0.8, *o.Scale)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PDF.ChromePath = "/usr/bin/chromium"
	o := OptionsFromConfig(cfg)
	assert.Equal(t, "/usr/bin/chromium", o.BrowserBin)
	assert.Equal(t, cfg.PDF.MaxPages, o.MaxPages)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, wrap(context.Background(), nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, wrap(ctx, errors.New("x")), context.Canceled)
}

func TestWrap_BrowserGoneIsEngineUnavailable(t *testing.T) {
	for _, err := range []error{
		io.EOF,
		fmt.Errorf("read: %w", net.ErrClosed),
		errors.New("cdp connection closed"),
		errors.New("{-32001 Session with given id not found. }"),
		errors.New("websocket: close 1006 (abnormal closure)"),
	} {
		assert.ErrorIs(t, wrap(context.Background(), err), domain.ErrEngineUnavailable, "err %v", err)
	}

	plain := errors.New("eval js error: ReferenceError: foo is not defined")
	assert.Equal(t, plain, wrap(context.Background(), plain))
	assert.False(t, errors.Is(wrap(context.Background(), plain), domain.ErrEngineUnavailable))
}
