// Package playwright drives Chromium, Firefox or WebKit through playwright-go.
//
// The Playwright driver is not context aware; blocking calls run on their own
// goroutine and are abandoned when ctx ends. Closing the page aborts them.
package playwright

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

var (
	_ ports.Launcher = (*Launcher)(nil)
	_ ports.Browser  = (*Browser)(nil)
	_ ports.Page     = (*Page)(nil)
)

const (
	DefaultBrowser           = "chromium"
	DefaultNavigationTimeout = 30 * time.Second
	DefaultWaitTimeout       = 30 * time.Second
	DefaultViewportWidth     = 800
	DefaultViewportHeight    = 600
)

// Config describes how the browser is started.
type Config struct {
	// Browser is one of chromium, firefox or webkit.
	Browser  string
	ExecPath string
	Headless bool
	Args     []string
	// Install downloads the driver and browser before the first launch.
	Install bool

	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Browser == "" {
		c.Browser = DefaultBrowser
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = DefaultViewportWidth
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = DefaultViewportHeight
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = DefaultNavigationTimeout
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	return c
}

func (c Config) launchOptions() pw.BrowserTypeLaunchOptions {
	opts := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(c.Headless),
		Args:     c.Args,
	}
	if c.ExecPath != "" {
		opts.ExecutablePath = pw.String(c.ExecPath)
	}
	return opts
}

func millis(d time.Duration) *float64 {
	return pw.Float(float64(d / time.Millisecond))
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger sets the logger for driver diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Launcher starts a Playwright driver and browser.
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

// Launch starts the driver and the configured browser.
func (l *Launcher) Launch(ctx context.Context) (ports.Browser, error) {
	return await(ctx, func() (ports.Browser, error) {
		if l.cfg.Install {
			if err := pw.Install(&pw.RunOptions{Browsers: []string{l.cfg.Browser}}); err != nil {
				return nil, fmt.Errorf("failed to install playwright: %w", err)
			}
		}

		driver, err := pw.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}

		var browserType pw.BrowserType
		switch l.cfg.Browser {
		case "chromium":
			browserType = driver.Chromium
		case "firefox":
			browserType = driver.Firefox
		case "webkit":
			browserType = driver.WebKit
		default:
			_ = driver.Stop()
			return nil, fmt.Errorf("unknown browser %q", l.cfg.Browser)
		}

		browser, err := browserType.Launch(l.cfg.launchOptions())
		if err != nil {
			_ = driver.Stop()
			return nil, fmt.Errorf("failed to launch %s: %w", l.cfg.Browser, err)
		}

		l.logger.Debug("Playwright browser started", "browser", l.cfg.Browser, "version", browser.Version())
		return &Browser{driver: driver, browser: browser, cfg: l.cfg, logger: l.logger}, nil
	})
}

// Browser is a running Playwright browser.
type Browser struct {
	driver  *pw.Playwright
	browser pw.Browser
	cfg     Config
	logger  *slog.Logger
}

// NewPage opens a page in a fresh browser context.
func (b *Browser) NewPage(ctx context.Context) (ports.Page, error) {
	return await(ctx, func() (ports.Page, error) {
		p, err := b.browser.NewPage(pw.BrowserNewPageOptions{
			Viewport: &pw.Size{Width: b.cfg.ViewportWidth, Height: b.cfg.ViewportHeight},
		})
		if err != nil {
			return nil, fmt.Errorf("new page: %w", err)
		}
		return &Page{page: p, cfg: b.cfg}, nil
	})
}

// Close closes the browser and stops the driver.
func (b *Browser) Close(ctx context.Context) error {
	_, err := await(ctx, func() (struct{}, error) {
		closeErr := b.browser.Close()
		if err := b.driver.Stop(); err != nil && closeErr == nil {
			closeErr = err
		}
		return struct{}{}, closeErr
	})
	return err
}

// Page is a single Playwright page.
type Page struct {
	page pw.Page
	cfg  Config
}

// Navigate loads url, waits for the network to go idle, and rejects HTTP
// statuses >= 400.
func (p *Page) Navigate(ctx context.Context, url string) error {
	_, err := await(ctx, func() (struct{}, error) {
		resp, err := p.page.Goto(url, pw.PageGotoOptions{
			WaitUntil: pw.WaitUntilStateNetworkidle,
			Timeout:   millis(p.cfg.NavigationTimeout),
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("navigate: %w", err)
		}
		if resp != nil && resp.Status() >= 400 {
			return struct{}{}, fmt.Errorf("navigate: HTTP %d %s", resp.Status(), resp.StatusText())
		}
		return struct{}{}, nil
	})
	return err
}

// WaitForSelector blocks until selector is attached to the DOM.
func (p *Page) WaitForSelector(ctx context.Context, selector string) error {
	_, err := await(ctx, func() (struct{}, error) {
		err := p.page.Locator(selector).First().WaitFor(pw.LocatorWaitForOptions{
			State:   pw.WaitForSelectorStateAttached,
			Timeout: millis(p.cfg.WaitTimeout),
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("wait for %q: %w", selector, err)
		}
		return struct{}{}, nil
	})
	return err
}

// Capture renders a PNG of the viewport, the full page, or the clip region.
func (p *Page) Capture(ctx context.Context, req domain.CaptureRequest) ([]byte, error) {
	return await(ctx, func() ([]byte, error) {
		data, err := p.page.Screenshot(screenshotOptions(req))
		if err != nil {
			return nil, fmt.Errorf("screenshot: %w", err)
		}
		if req.TargetPath != "" {
			if err := os.WriteFile(req.TargetPath, data, 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", req.TargetPath, err)
			}
		}
		return data, nil
	})
}

func screenshotOptions(req domain.CaptureRequest) pw.PageScreenshotOptions {
	opts := pw.PageScreenshotOptions{
		Type:     pw.ScreenshotTypePng,
		FullPage: pw.Bool(req.FullPage),
	}
	if clip := req.EffectiveClip(); clip != nil {
		opts.Clip = &pw.Rect{X: clip.X, Y: clip.Y, Width: clip.Width, Height: clip.Height}
	}
	return opts
}

// Close closes the page.
func (p *Page) Close() error {
	return p.page.Close()
}

// await runs fn on its own goroutine and returns early when ctx ends.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
