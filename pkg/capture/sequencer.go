package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// AckFunc confirms a completed capture. The bridge writes the trigger value
// back with ack=true.
type AckFunc func(ctx context.Context) error

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger used to report capture failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHooks registers lifecycle callbacks for phases and outcomes.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Sequencer) {
		s.hooks = hooks
	}
}

// Sequencer runs captures against a shared Session.
type Sequencer struct {
	session  *Session
	resolver *Resolver
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// NewSequencer creates a Sequencer.
func NewSequencer(session *Session, resolver *Resolver, opts ...Option) *Sequencer {
	s := &Sequencer{
		session:  session,
		resolver: resolver,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleTrigger captures targetURL using the current configuration and calls
// ack once the image is on disk.
//
// A trigger that arrives while the session is not active is ignored and nil is
// returned. Every other failure is logged with its URL and returned as a
// *domain.CaptureError; nothing is retried and ack is not called.
func (s *Sequencer) HandleTrigger(ctx context.Context, targetURL string, ack AckFunc) error {
	browser, release, ok := s.session.Acquire()
	if !ok {
		s.logger.Debug("Ignoring trigger, browser session not active", "url", targetURL, "status", s.session.Status())
		return nil
	}
	defer release()

	run := s.newRun(targetURL)

	req, err := s.resolver.ResolveCaptureRequest(ctx)
	if err != nil {
		return s.fail(ctx, run, domain.ErrConfiguration, err)
	}
	if req.TargetPath == "" {
		return s.fail(ctx, run, domain.ErrConfiguration, fmt.Errorf("%s is not configured", domain.KeyFilename))
	}
	wait, err := s.resolver.ResolveWaitStrategy(ctx)
	if err != nil {
		return s.fail(ctx, run, domain.ErrConfiguration, err)
	}

	_, err = s.execute(ctx, browser, run, req, wait, ack)
	return err
}

// Capture runs a single capture with explicit parameters, bypassing the
// configuration snapshot. TargetPath may be empty, in which case the image is
// only returned. Unlike HandleTrigger, an inactive session is an error.
func (s *Sequencer) Capture(ctx context.Context, targetURL string, req domain.CaptureRequest, wait domain.WaitStrategy) ([]byte, error) {
	browser, release, ok := s.session.Acquire()
	if !ok {
		return nil, fmt.Errorf("capture %s: %w", targetURL, domain.ErrSessionUnavailable)
	}
	defer release()

	return s.execute(ctx, browser, s.newRun(targetURL), req, wait, nil)
}

// run tracks a single pass through the phase machine.
type run struct {
	id      string
	url     string
	phase   domain.Phase
	started time.Time
	req     domain.CaptureRequest
	wait    domain.WaitStrategy
}

func (s *Sequencer) newRun(targetURL string) *run {
	return &run{
		id:      uuid.NewString(),
		url:     targetURL,
		phase:   domain.PhaseIdle,
		started: time.Now(),
	}
}

func (s *Sequencer) execute(ctx context.Context, browser ports.Browser, r *run, req domain.CaptureRequest, wait domain.WaitStrategy, ack AckFunc) ([]byte, error) {
	r.req, r.wait = req, wait

	page, err := browser.NewPage(ctx)
	if err != nil {
		return nil, s.fail(ctx, r, domain.ErrNavigation, fmt.Errorf("open page: %w", err))
	}
	var closeOnce sync.Once
	closePage := func() {
		closeOnce.Do(func() {
			if err := page.Close(); err != nil {
				s.logger.Debug("Page close failed", "url", r.url, "error", err)
			}
		})
	}
	defer closePage()

	s.transition(ctx, r, domain.PhaseNavigating)
	if err := page.Navigate(ctx, r.url); err != nil {
		return nil, s.fail(ctx, r, domain.ErrNavigation, err)
	}

	s.transition(ctx, r, domain.PhaseWaiting)
	if err := s.await(ctx, page, wait); err != nil {
		return nil, s.fail(ctx, r, domain.ErrWait, err)
	}

	s.transition(ctx, r, domain.PhaseCapturing)
	data, err := page.Capture(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, r, domain.ErrCapture, err)
	}

	if ack != nil {
		if err := ack(ctx); err != nil {
			return nil, s.fail(ctx, r, domain.ErrCapture, fmt.Errorf("acknowledge: %w", err))
		}
	}
	closePage()

	s.transition(ctx, r, domain.PhaseAcknowledged)
	s.logger.Info("Captured screenshot",
		"url", r.url,
		"path", req.TargetPath,
		"full_page", req.FullPage,
		"wait", wait.String(),
		"duration", time.Since(r.started),
	)
	if s.hooks.OnCaptured != nil {
		s.hooks.OnCaptured(ctx, s.event(r, domain.EventCaptured, len(data), nil))
	}
	return data, nil
}

// await applies the wait strategy. A selector wait is bounded by the page's
// own timeout; a fixed delay is cut short only by ctx.
func (s *Sequencer) await(ctx context.Context, page ports.Page, wait domain.WaitStrategy) error {
	switch wait.Kind {
	case domain.WaitSelector:
		return page.WaitForSelector(ctx, wait.Selector)
	case domain.WaitFixedDelay:
		if wait.Delay <= 0 {
			return nil
		}
		timer := time.NewTimer(wait.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		return nil
	}
}

func (s *Sequencer) transition(ctx context.Context, r *run, next domain.Phase) {
	from := r.phase
	r.phase = next
	if s.hooks.OnPhase != nil {
		s.hooks.OnPhase(ctx, &domain.PhaseEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventPhase, CaptureID: r.id},
			URL:       r.url,
			From:      from,
			Phase:     next,
		})
	}
}

func (s *Sequencer) fail(ctx context.Context, r *run, kind error, cause error) error {
	err := domain.NewCaptureError(kind, r.phase, r.url, cause)
	s.transition(ctx, r, domain.PhaseFailed)
	s.logger.Error("Screenshot failed", "url", r.url, "phase", err.Phase, "error", err)
	if s.hooks.OnFailed != nil {
		s.hooks.OnFailed(ctx, s.event(r, domain.EventFailed, 0, err))
	}
	return err
}

func (s *Sequencer) event(r *run, typ domain.EventType, n int, err error) *domain.CaptureEvent {
	return &domain.CaptureEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, CaptureID: r.id},
		URL:       r.url,
		Path:      r.req.TargetPath,
		FullPage:  r.req.FullPage,
		Wait:      r.wait.String(),
		Duration:  time.Since(r.started),
		Bytes:     n,
		Err:       err,
	}
}
