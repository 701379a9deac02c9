package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// Calls is a snapshot of everything a FakeBrowser has been asked to do.
type Calls struct {
	Sequence   []string
	Navigated  []string
	Selectors  []string
	Captures   []domain.CaptureRequest
	PageCloses int
	Closes     int
}

// FakeBrowser is a ports.Browser that records calls instead of rendering.
// Error fields may be set before use to make the matching call fail.
type FakeBrowser struct {
	NewPageErr error
	NavErr     error
	WaitErr    error
	CaptureErr error
	CloseErr   error
	Image      []byte

	// Gate, when set, blocks Capture until it is closed or ctx ends.
	Gate chan struct{}

	mu    sync.Mutex
	calls Calls
}

// NewFakeBrowser creates a FakeBrowser returning a small placeholder image.
func NewFakeBrowser() *FakeBrowser {
	return &FakeBrowser{Image: []byte("png")}
}

// Launcher returns a launcher that always hands out b.
func (b *FakeBrowser) Launcher() ports.Launcher {
	return ports.LauncherFunc(func(context.Context) (ports.Browser, error) {
		return b, nil
	})
}

// Snapshot returns a copy of the recorded calls.
func (b *FakeBrowser) Snapshot() Calls {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Calls{
		Sequence:   append([]string(nil), b.calls.Sequence...),
		Navigated:  append([]string(nil), b.calls.Navigated...),
		Selectors:  append([]string(nil), b.calls.Selectors...),
		Captures:   append([]domain.CaptureRequest(nil), b.calls.Captures...),
		PageCloses: b.calls.PageCloses,
		Closes:     b.calls.Closes,
	}
}

// SetNavErr changes the navigation error while the browser is in use.
func (b *FakeBrowser) SetNavErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.NavErr = err
}

func (b *FakeBrowser) record(call string, fn func(*Calls)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls.Sequence = append(b.calls.Sequence, call)
	if fn != nil {
		fn(&b.calls)
	}
}

func (b *FakeBrowser) NewPage(context.Context) (ports.Page, error) {
	b.record("newPage", nil)
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	return &fakePage{browser: b}, nil
}

func (b *FakeBrowser) Close(context.Context) error {
	b.record("closeBrowser", func(c *Calls) { c.Closes++ })
	return b.CloseErr
}

type fakePage struct {
	browser *FakeBrowser
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.browser.record("navigate", func(c *Calls) { c.Navigated = append(c.Navigated, url) })
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return p.browser.NavErr
}

func (p *fakePage) WaitForSelector(_ context.Context, selector string) error {
	p.browser.record("waitForSelector", func(c *Calls) { c.Selectors = append(c.Selectors, selector) })
	return p.browser.WaitErr
}

func (p *fakePage) Capture(ctx context.Context, req domain.CaptureRequest) ([]byte, error) {
	if p.browser.Gate != nil {
		select {
		case <-p.browser.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.browser.record("capture", func(c *Calls) { c.Captures = append(c.Captures, req) })
	if p.browser.CaptureErr != nil {
		return nil, p.browser.CaptureErr
	}
	return p.browser.Image, nil
}

func (p *fakePage) Close() error {
	p.browser.record("closePage", func(c *Calls) { c.PageCloses++ })
	return nil
}
