package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/shutter/pkg/domain"
)

// LoggingHooks writes phase transitions and session changes to logger at
// debug level. Outcomes are already logged by the sequencer.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhase: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.DebugContext(ctx, "phase",
				"capture_id", e.CaptureID,
				"url", e.URL,
				"from", e.From,
				"to", e.Phase,
			)
		},
		OnSession: func(ctx context.Context, e *domain.SessionEvent) {
			logger.DebugContext(ctx, "session", "status", e.Status)
		},
		OnDropped: func(ctx context.Context, c *domain.StateChange) {
			logger.DebugContext(ctx, "dropped", "key", c.Key, "val", c.State.Val)
		},
	}
}
