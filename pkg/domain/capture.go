package domain

import (
	"fmt"
	"math"
	"time"
)

// ClipRegion is a rectangle of the page, in CSS pixels.
type ClipRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CaptureRequest describes a single screenshot.
//
// Clip is only honoured when FullPage is false.
type CaptureRequest struct {
	TargetPath string      `json:"target_path"`
	FullPage   bool        `json:"full_page"`
	Clip       *ClipRegion `json:"clip,omitempty"`
}

// EffectiveClip returns the clip region that applies to the capture, if any.
func (r CaptureRequest) EffectiveClip() *ClipRegion {
	if r.FullPage {
		return nil
	}
	return r.Clip
}

// WaitKind enumerates the wait strategies applied between navigation and capture.
type WaitKind int

const (
	WaitNone WaitKind = iota
	WaitSelector
	WaitFixedDelay
)

func (k WaitKind) String() string {
	switch k {
	case WaitSelector:
		return "selector"
	case WaitFixedDelay:
		return "fixed_delay"
	default:
		return "none"
	}
}

// WaitStrategy is a tagged variant: at most one of Selector / Delay is meaningful,
// depending on Kind.
type WaitStrategy struct {
	Kind     WaitKind
	Selector string
	Delay    time.Duration
}

// NoWait proceeds to capture immediately after navigation.
func NoWait() WaitStrategy {
	return WaitStrategy{Kind: WaitNone}
}

// WaitForSelector blocks until the selector is present in the DOM.
func WaitForSelector(selector string) WaitStrategy {
	return WaitStrategy{Kind: WaitSelector, Selector: selector}
}

// WaitFor blocks for a fixed duration.
func WaitFor(delay time.Duration) WaitStrategy {
	return WaitStrategy{Kind: WaitFixedDelay, Delay: delay}
}

// WaitForMillis is WaitFor expressed in (possibly fractional) milliseconds.
// Negative values wait zero; values beyond time.Duration's range saturate.
func WaitForMillis(ms float64) WaitStrategy {
	ns := ms * float64(time.Millisecond)
	switch {
	case ns <= 0 || math.IsNaN(ns):
		return WaitFor(0)
	case ns >= math.MaxInt64:
		return WaitFor(time.Duration(math.MaxInt64))
	default:
		return WaitFor(time.Duration(ns))
	}
}

// ExplicitWait picks the wait strategy of a direct capture: a non-empty
// selector wins, then a positive render time, else no wait.
func ExplicitWait(selector string, renderTime float64) WaitStrategy {
	switch {
	case selector != "":
		return WaitForSelector(selector)
	case renderTime > 0:
		return WaitForMillis(renderTime)
	default:
		return NoWait()
	}
}

func (w WaitStrategy) String() string {
	switch w.Kind {
	case WaitSelector:
		return fmt.Sprintf("selector(%s)", w.Selector)
	case WaitFixedDelay:
		return fmt.Sprintf("delay(%s)", w.Delay)
	default:
		return "none"
	}
}
