package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger used for teardown diagnostics.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionHooks registers session lifecycle callbacks.
func WithSessionHooks(hooks domain.LifecycleHooks) SessionOption {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// Session owns the single browser shared by all captures.
//
// Status moves Uninitialized -> Active -> ShuttingDown -> Closed and never back.
// Done is closed exactly once, when Close has finished, whatever the outcome.
type Session struct {
	mu       sync.RWMutex
	status   domain.SessionStatus
	browser  ports.Browser
	inflight sync.WaitGroup

	done      chan struct{}
	closeOnce sync.Once

	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// NewSession creates an uninitialized session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		status: domain.SessionUninitialized,
		done:   make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open launches the browser. Calling Open on an active session is a no-op;
// a session that has started shutting down cannot be reopened.
func (s *Session) Open(ctx context.Context, launcher ports.Launcher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.SessionActive:
		return nil
	case domain.SessionShuttingDown, domain.SessionClosed:
		return fmt.Errorf("open session: %w", domain.ErrSessionUnavailable)
	}

	browser, err := launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	s.browser = browser
	s.setStatusLocked(ctx, domain.SessionActive)
	return nil
}

// Acquire returns the browser while the session is active. The release
// function must be called once the caller has closed its page; Close waits for
// outstanding acquisitions before closing the browser.
func (s *Session) Acquire() (ports.Browser, func(), bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status != domain.SessionActive {
		return nil, func() {}, false
	}
	s.inflight.Add(1)
	var once sync.Once
	return s.browser, func() { once.Do(s.inflight.Done) }, true
}

// Status returns the current lifecycle status.
func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Close tears the session down. It is idempotent, never returns an error and
// always closes Done. Browser close failures are logged and swallowed. ctx
// bounds both the wait for in-flight captures and the browser close.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		defer close(s.done)

		s.mu.Lock()
		browser := s.browser
		if browser == nil {
			s.setStatusLocked(ctx, domain.SessionClosed)
			s.mu.Unlock()
			return
		}
		s.setStatusLocked(ctx, domain.SessionShuttingDown)
		s.mu.Unlock()

		s.drain(ctx)

		if err := closeWithin(ctx, browser); err != nil {
			s.logger.Warn("Browser close failed", "error", err)
		}

		s.mu.Lock()
		s.browser = nil
		s.setStatusLocked(ctx, domain.SessionClosed)
		s.mu.Unlock()
	})
}

// Done is closed once teardown has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) drain(ctx context.Context) {
	idle := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		s.logger.Warn("Closing browser with captures still in flight", "error", ctx.Err())
	}
}

func closeWithin(ctx context.Context, browser ports.Browser) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- browser.Close(ctx)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("browser close abandoned: %w", ctx.Err())
	}
}

func (s *Session) setStatusLocked(ctx context.Context, status domain.SessionStatus) {
	if s.status == status {
		return
	}
	s.status = status
	s.logger.Debug("Browser session", "status", status)
	if s.hooks.OnSession != nil {
		s.hooks.OnSession(ctx, &domain.SessionEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSessionState},
			Status:    status,
		})
	}
}
