package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTrigger      EventType = "trigger"
	EventPhase        EventType = "phase"
	EventCaptured     EventType = "captured"
	EventFailed       EventType = "failed"
	EventDropped      EventType = "dropped"
	EventSessionState EventType = "session_state"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	CaptureID string    `json:"capture_id,omitempty"`
}

// PhaseEvent reports a transition of the per-request state machine.
type PhaseEvent struct {
	EventBase
	URL   string `json:"url"`
	From  Phase  `json:"from"`
	Phase Phase  `json:"phase"`
}

// CaptureEvent reports the outcome of a capture.
type CaptureEvent struct {
	EventBase
	URL      string        `json:"url"`
	Path     string        `json:"path,omitempty"`
	FullPage bool          `json:"full_page"`
	Wait     string        `json:"wait"`
	Duration time.Duration `json:"duration"`
	Bytes    int           `json:"bytes,omitempty"`
	Err      error         `json:"-"`
}

// SessionEvent reports a browser session lifecycle transition.
type SessionEvent struct {
	EventBase
	Status SessionStatus `json:"status"`
}

// LifecycleHooks defines callbacks for bridge observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnTrigger  func(context.Context, *StateChange)
	OnDropped  func(context.Context, *StateChange)
	OnPhase    func(context.Context, *PhaseEvent)
	OnCaptured func(context.Context, *CaptureEvent)
	OnFailed   func(context.Context, *CaptureEvent)
	OnSession  func(context.Context, *SessionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTrigger:  chain(h.OnTrigger, other.OnTrigger),
		OnDropped:  chain(h.OnDropped, other.OnDropped),
		OnPhase:    chain(h.OnPhase, other.OnPhase),
		OnCaptured: chain(h.OnCaptured, other.OnCaptured),
		OnFailed:   chain(h.OnFailed, other.OnFailed),
		OnSession:  chain(h.OnSession, other.OnSession),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
