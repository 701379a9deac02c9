package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/shutter/pkg/domain"
)

const namespace = "shutter"

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the bridge collectors.
type Metrics struct {
	Triggers  prometheus.Counter
	Dropped   prometheus.Counter
	Captures  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Bytes     prometheus.Histogram
	Phases    *prometheus.CounterVec
	SessionUp prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Triggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Actionable trigger writes received.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_dropped_total",
			Help:      "Triggers discarded because the queue was full.",
		}),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Completed captures by result and error kind.",
		}, []string{"result", "kind"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Time from trigger handling to acknowledgement or failure.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"result"}),
		Bytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_bytes",
			Help:      "Size of the rendered images.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		Phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Capture phase transitions.",
		}, []string{"phase"}),
		SessionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "browser_session_active",
			Help:      "1 while the browser session is active.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Triggers, m.Dropped, m.Captures, m.Duration, m.Bytes, m.Phases, m.SessionUp} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTrigger: func(context.Context, *domain.StateChange) {
			m.Triggers.Inc()
		},
		OnDropped: func(context.Context, *domain.StateChange) {
			m.Dropped.Inc()
		},
		OnPhase: func(_ context.Context, e *domain.PhaseEvent) {
			m.Phases.WithLabelValues(string(e.Phase)).Inc()
		},
		OnCaptured: func(_ context.Context, e *domain.CaptureEvent) {
			m.Captures.WithLabelValues(ResultSuccess, "").Inc()
			m.Duration.WithLabelValues(ResultSuccess).Observe(e.Duration.Seconds())
			m.Bytes.Observe(float64(e.Bytes))
		},
		OnFailed: func(_ context.Context, e *domain.CaptureEvent) {
			m.Captures.WithLabelValues(ResultFailure, ErrorKind(e.Err)).Inc()
			m.Duration.WithLabelValues(ResultFailure).Observe(e.Duration.Seconds())
		},
		OnSession: func(_ context.Context, e *domain.SessionEvent) {
			if e.Status == domain.SessionActive {
				m.SessionUp.Set(1)
				return
			}
			m.SessionUp.Set(0)
		},
	}
}

// ErrorKind maps a capture error onto a short label value.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	case errors.Is(err, domain.ErrNavigation):
		return "navigation"
	case errors.Is(err, domain.ErrWait):
		return "wait"
	case errors.Is(err, domain.ErrCapture):
		return "capture"
	default:
		return "unknown"
	}
}
