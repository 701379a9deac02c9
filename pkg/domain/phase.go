package domain

// Phase is the per-request state of a capture.
//
//	Idle -> Navigating -> Waiting -> Capturing -> {Acknowledged | Failed}
//
// Acknowledged and Failed are terminal.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseNavigating   Phase = "navigating"
	PhaseWaiting      Phase = "waiting"
	PhaseCapturing    Phase = "capturing"
	PhaseAcknowledged Phase = "acknowledged"
	PhaseFailed       Phase = "failed"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseAcknowledged || p == PhaseFailed
}

// SessionStatus is the lifecycle of the shared browser session.
//
//	Uninitialized -> Active -> ShuttingDown -> Closed
type SessionStatus string

const (
	SessionUninitialized SessionStatus = "uninitialized"
	SessionActive        SessionStatus = "active"
	SessionShuttingDown  SessionStatus = "shutting_down"
	SessionClosed        SessionStatus = "closed"
)
