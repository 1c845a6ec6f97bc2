// Package chrome is the chromedp render engine: one shared browser process,
// one tab per conversion.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/logging"
)

// Options configure the shared browser.
type Options struct {
	ChromePath  string
	NoSandbox   bool
	MaxPages    int
	UserDataDir string
}

// OptionsFromConfig reads the pdf section.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ChromePath:  cfg.PDF.ChromePath,
		NoSandbox:   cfg.PDF.ChromeNoSandbox,
		MaxPages:    cfg.PDF.MaxPages,
		UserDataDir: cfg.PDF.UserDataDir,
	}
}

// Browser implements domain.Engine. The process starts on the first
// OpenPage or Warmup; at most MaxPages tabs are open at once.
type Browser struct {
	opts Options
	sem  chan struct{}

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
	profileDir    string
	closed        bool
	restarts      int
	lastRestart   time.Time
}

var (
	_ domain.Engine    = (*Browser)(nil)
	_ domain.Restarter = (*Browser)(nil)
)

// NewBrowser prepares the browser. It does not launch Chrome.
func NewBrowser(opts Options) (*Browser, error) {
	if opts.MaxPages <= 0 {
		return nil, fmt.Errorf("chrome: max pages must be > 0")
	}
	b := &Browser{opts: opts, sem: make(chan struct{}, opts.MaxPages)}
	for i := 0; i < opts.MaxPages; i++ {
		b.sem <- struct{}{}
	}
	if err := b.initLocked(); err != nil {
		return nil, err
	}
	return b, nil
}

func createProfileDir(opts Options) (string, error) {
	base := opts.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create profile base %s: %w", base, err)
	}
	return os.MkdirTemp(base, "dazzlodocs-chrome-*")
}

// initLocked builds fresh allocator and browser contexts. Callers hold mu
// or own b exclusively.
func (b *Browser) initLocked() error {
	dir, err := createProfileDir(b.opts)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}

	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(dir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Rendered documents reference sibling files through file:// URLs.
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if b.opts.ChromePath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(b.opts.ChromePath))
	}
	if b.opts.NoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	b.profileDir = dir
	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.started = false
	return nil
}

// Warmup launches Chrome if it is not running yet.
func (b *Browser) Warmup(ctx context.Context, timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureStartedLocked(ctx, timeout)
}

func (b *Browser) ensureStartedLocked(ctx context.Context, timeout time.Duration) error {
	if b.closed {
		return fmt.Errorf("%w: browser closed", domain.ErrEngineUnavailable)
	}
	if b.started {
		return nil
	}
	if b.browserCancel == nil {
		// A previous start failed to rebuild its contexts.
		if err := b.initLocked(); err != nil {
			return err
		}
	}
	// The browser lives as long as the context of its first Run, so it
	// must run on browserCtx itself.
	browserCancel, allocCancel := b.browserCancel, b.allocCancel
	cancel := func() {
		browserCancel()
		allocCancel()
	}
	if err := waitForRenderReady(ctx, b.browserCtx, cancel, timeout); err != nil {
		b.shutdownLocked()
		if initErr := b.initLocked(); initErr != nil {
			logging.Warn("Failed to reset chrome after a failed start", "error", initErr)
		}
		return fmt.Errorf("%w: start chrome: %v", domain.ErrEngineUnavailable, err)
	}
	b.started = true
	logging.Info("Chrome started", "profile_dir", b.profileDir, "max_pages", cap(b.sem))
	return nil
}

// startTarget runs an empty action list on ctx, which launches the browser
// or creates the tab target bound to ctx.
var startTarget = func(ctx context.Context) error { return chromedp.Run(ctx) }

// waitForRenderReady launches the browser on browserCtx and gives up after
// timeout or when ctx is done. Giving up calls cancel and waits for the
// launch to return.
func waitForRenderReady(ctx, browserCtx context.Context, cancel context.CancelFunc, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	done := make(chan error, 1)
	go func() { done <- startTarget(browserCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var err error
	select {
	case err := <-done:
		return err
	case <-timer.C:
		err = fmt.Errorf("browser not ready after %s", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logging.Warn("Chrome launch did not stop after cancel")
	}
	return err
}

// OpenPage waits for a free tab slot and returns a new tab.
func (b *Browser) OpenPage(ctx context.Context) (domain.Page, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: browser closed", domain.ErrEngineUnavailable)
	}

	select {
	case <-b.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { b.sem <- struct{}{} }

	b.mu.Lock()
	if err := b.ensureStartedLocked(ctx, 30*time.Second); err != nil {
		b.mu.Unlock()
		release()
		return nil, err
	}
	parent := b.browserCtx
	b.mu.Unlock()

	if parent.Err() != nil {
		release()
		return nil, fmt.Errorf("%w: browser context done", domain.ErrEngineUnavailable)
	}
	tabCtx, cancel := chromedp.NewContext(parent)
	return &tab{ctx: tabCtx, cancel: cancel, browserCtx: parent, release: release}, nil
}

// Restart kills the browser and prepares a fresh profile. In-flight tabs
// fail with domain.ErrEngineUnavailable.
func (b *Browser) Restart() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("%w: browser closed", domain.ErrEngineUnavailable)
	}
	b.shutdownLocked()
	if err := b.initLocked(); err != nil {
		return err
	}
	b.restarts++
	b.lastRestart = time.Now()
	logging.Warn("Chrome restarted", "restarts", b.restarts, "profile_dir", b.profileDir)
	return nil
}

func (b *Browser) shutdownLocked() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	if b.profileDir != "" {
		if err := os.RemoveAll(b.profileDir); err != nil {
			logging.Warn("Failed to remove chrome profile", "dir", b.profileDir, "error", err)
		}
	}
	b.browserCancel, b.allocCancel, b.profileDir = nil, nil, ""
	b.started = false
}

// Close stops the browser. It is safe to call more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.shutdownLocked()
	return nil
}

// Stats describes the tab capacity.
type Stats struct {
	Enabled     bool      `json:"enabled"`
	Running     bool      `json:"running"`
	Capacity    int       `json:"capacity"`
	Idle        int       `json:"idle"`
	InUse       int       `json:"in_use"`
	ProfileDir  string    `json:"profile_dir"`
	Restarts    int       `json:"restarts"`
	LastRestart time.Time `json:"last_restart,omitempty"`
}

func (b *Browser) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Stats{Restarts: b.restarts, LastRestart: b.lastRestart}
	}
	idle := len(b.sem)
	return Stats{
		Enabled:     true,
		Running:     b.started,
		Capacity:    cap(b.sem),
		Idle:        idle,
		InUse:       cap(b.sem) - idle,
		ProfileDir:  b.profileDir,
		Restarts:    b.restarts,
		LastRestart: b.lastRestart,
	}
}

// IsSessionInterrupted reports errors caused by a cancelled or lost
// browser session rather than by the document.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket", "browser has disconnected", "invalid context", "no such target"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
