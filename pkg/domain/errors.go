package domain

import (
	"errors"
	"fmt"
)

// ErrStateNotFound is returned when a key has never been written to the store.
var ErrStateNotFound = errors.New("state not found")

// Error kinds reported by a capture. They are matched with errors.Is.
var (
	// ErrConfiguration means a required value (the output path) is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrNavigation means the URL was unreachable, timed out or was rejected.
	ErrNavigation = errors.New("navigation error")
	// ErrWait means the awaited selector never appeared.
	ErrWait = errors.New("wait error")
	// ErrCapture means rendering or writing the image failed.
	ErrCapture = errors.New("capture error")
	// ErrSessionUnavailable means the browser session is not active.
	// Triggers that hit it are ignored rather than reported.
	ErrSessionUnavailable = errors.New("browser session unavailable")
)

// CaptureError carries the phase and URL of a failed capture.
type CaptureError struct {
	Kind  error
	Phase Phase
	URL   string
	Err   error
}

// NewCaptureError wraps err with its kind, phase and URL.
func NewCaptureError(kind error, phase Phase, url string, err error) *CaptureError {
	return &CaptureError{Kind: kind, Phase: phase, URL: url, Err: err}
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s) for %s", e.Kind, e.Phase, e.URL)
	}
	return fmt.Sprintf("%v (%s) for %s: %v", e.Kind, e.Phase, e.URL, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *CaptureError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
