package chrome

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

var (
	_ ports.Launcher = (*Launcher)(nil)
	_ ports.Browser  = (*Browser)(nil)
	_ ports.Page     = (*Page)(nil)
)

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger routes chromedp diagnostics to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Launcher starts Chrome through the DevTools protocol.
type Launcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewLauncher creates a Launcher. Zero Config fields take their defaults.
func NewLauncher(cfg Config, opts ...Option) *Launcher {
	l := &Launcher{cfg: cfg.withDefaults(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts (or attaches to) the browser. ctx bounds the startup only;
// the browser lives until Close.
func (l *Launcher) Launch(ctx context.Context) (ports.Browser, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if l.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), l.cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), l.cfg.allocatorOptions()...)
	}

	logf := func(format string, args ...any) {
		l.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(logf),
	)

	// Abort the startup, not the browser, when ctx ends.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	if !stop() {
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	l.logger.Debug("Chrome started", "remote", l.cfg.RemoteURL != "", "headless", l.cfg.Headless)
	return &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		cfg:         l.cfg,
		logger:      l.logger,
	}, nil
}

// Browser is a running Chrome instance.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	cfg         Config
	logger      *slog.Logger
}

// NewPage opens a new tab sized to the configured viewport.
func (b *Browser) NewPage(ctx context.Context) (ports.Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)

	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(b.cfg.ViewportWidth), int64(b.cfg.ViewportHeight)),
		network.Enable(),
	)
	if !stop() {
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("new tab: %w", err)
	}
	return &Page{ctx: tabCtx, cancel: cancel, cfg: b.cfg}, nil
}

// Close shuts the browser down gracefully, then releases the allocator.
func (b *Browser) Close(ctx context.Context) error {
	defer b.allocCancel()
	if err := chromedp.Cancel(b.ctx); err != nil {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}

// Page is a single Chrome tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
}

// scope derives a context that carries the tab executor and ends with ctx,
// the tab, or after timeout.
func (p *Page) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads url, fails on network errors and HTTP statuses >= 400, and
// then waits for the network to settle.
func (p *Page) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.scope(ctx, p.cfg.NavigationTimeout)
	defer cancel()

	idle := newIdleTracker(idleMaxInflight, idleQuiet)
	chromedp.ListenTarget(runCtx, idle.handle)

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if resp != nil && resp.Status >= 400 {
		return fmt.Errorf("navigate: HTTP %d %s", resp.Status, resp.StatusText)
	}
	return idle.wait(runCtx)
}

// WaitForSelector blocks until selector matches a node in the DOM.
func (p *Page) WaitForSelector(ctx context.Context, selector string) error {
	runCtx, cancel := p.scope(ctx, p.cfg.WaitTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// Capture renders a PNG of the viewport, the full page, or the clip region.
func (p *Page) Capture(ctx context.Context, req domain.CaptureRequest) ([]byte, error) {
	runCtx, cancel := p.scope(ctx, p.cfg.CaptureTimeout)
	defer cancel()

	var buf []byte
	var action chromedp.Action
	switch clip := req.EffectiveClip(); {
	case req.FullPage:
		action = chromedp.FullScreenshot(&buf, 100)
	case clip != nil:
		action = chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{
					X:      clip.X,
					Y:      clip.Y,
					Width:  clip.Width,
					Height: clip.Height,
					Scale:  1,
				}).
				Do(ctx)
			return err
		})
	default:
		action = chromedp.CaptureScreenshot(&buf)
	}

	if err := chromedp.Run(runCtx, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	if req.TargetPath != "" {
		if err := os.WriteFile(req.TargetPath, buf, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", req.TargetPath, err)
		}
	}
	return buf, nil
}

// Close closes the tab.
func (p *Page) Close() error {
	defer p.cancel()
	return chromedp.Cancel(p.ctx)
}
