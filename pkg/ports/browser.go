package ports

import (
	"context"

	"github.com/aretw0/shutter/pkg/domain"
)

// Launcher starts a browser. It is called once per browser session.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a plain function to Launcher.
type LauncherFunc func(ctx context.Context) (Browser, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) {
	return f(ctx)
}

// Browser is a long-lived browser process shared by all captures.
type Browser interface {
	// NewPage opens a transient page (tab) scoped to one capture.
	NewPage(ctx context.Context) (Page, error)

	// Close terminates the browser process.
	Close(ctx context.Context) error
}

// Page is a single tab. Callers must Close it exactly once.
type Page interface {
	// Navigate loads url and returns once network activity is quiescent.
	Navigate(ctx context.Context, url string) error

	// WaitForSelector blocks until selector is present in the DOM.
	WaitForSelector(ctx context.Context, selector string) error

	// Capture renders the page according to req and writes it to req.TargetPath.
	// When TargetPath is empty the image is only returned.
	Capture(ctx context.Context, req domain.CaptureRequest) ([]byte, error)

	// Close releases the page.
	Close() error
}
