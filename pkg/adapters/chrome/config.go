package chrome

import (
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Defaults mirror the built-in timeouts of puppeteer-style navigation helpers.
const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultWaitTimeout       = 30 * time.Second
	DefaultCaptureTimeout    = 30 * time.Second
	DefaultViewportWidth     = 800
	DefaultViewportHeight    = 600

	// A page counts as settled once no more than idleMaxInflight requests
	// have been pending for idleQuiet.
	idleMaxInflight = 2
	idleQuiet       = 500 * time.Millisecond
)

// Config describes how the browser is started.
type Config struct {
	// RemoteURL attaches to an already running browser (ws://host:9222/...)
	// instead of starting one. ExecPath, UserDataDir, Headless and Args are
	// ignored when it is set.
	RemoteURL   string
	ExecPath    string
	UserDataDir string
	Headless    bool
	// Args are extra command line switches, "--name=value" or "--name".
	Args []string

	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
	CaptureTimeout    time.Duration
}

func (c Config) withDefaults() Config {
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
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = DefaultCaptureTimeout
	}
	return c
}

// allocatorOptions builds the exec allocator flags for c.
func (c Config) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.WindowSize(c.ViewportWidth, c.ViewportHeight),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
	)
	if !c.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	if c.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.UserDataDir))
	}
	for _, arg := range c.Args {
		if name, value, ok := parseSwitch(arg); ok {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}
	return opts
}

// parseSwitch turns "--name=value" into ("name", "value") and "--name" into ("name", true).
func parseSwitch(arg string) (string, any, bool) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil, false
	}
	name, value, hasValue := strings.Cut(arg, "=")
	if !hasValue {
		return name, true, true
	}
	return name, value, true
}
