package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a trigger.
const DefaultLockTTL = 2 * time.Minute

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates trigger handling, ensuring one handler per key at a time.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new trigger Manager reading current values from store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Claim runs fn only if change is still the current, unacknowledged value of its key.
// It reports whether fn ran. Superseded and acknowledged changes are skipped silently.
func (m *Manager) Claim(ctx context.Context, change domain.StateChange, fn func(context.Context) error) (bool, error) {
	ran := false
	err := m.WithLock(ctx, change.Key, func(ctx context.Context) error {
		current, err := m.store.GetState(ctx, change.Key)
		if err != nil {
			if errors.Is(err, domain.ErrStateNotFound) {
				return nil
			}
			return fmt.Errorf("failed to re-read trigger: %w", err)
		}
		if current.Ack || !sameValue(current.Val, change.State.Val) {
			m.logger.Debug("Skipping stale trigger",
				"key", change.Key,
				"val", change.State.Val,
				"current", current.Val,
				"ack", current.Ack,
			)
			return nil
		}
		ran = true
		return fn(ctx)
	})
	return ran, err
}

// Acknowledge writes change's value back with ack=true, unless a newer value
// has been written to the key meanwhile. A superseded trigger stays pending
// for its own capture and is not acknowledged.
func (m *Manager) Acknowledge(ctx context.Context, change domain.StateChange, from string) error {
	current, err := m.store.GetState(ctx, change.Key)
	if err != nil && !errors.Is(err, domain.ErrStateNotFound) {
		return fmt.Errorf("failed to re-read trigger: %w", err)
	}
	if current != nil && !sameValue(current.Val, change.State.Val) {
		m.logger.Debug("Not acknowledging superseded trigger",
			"key", change.Key,
			"val", change.State.Val,
			"current", current.Val,
		)
		return nil
	}

	state := domain.NewState(change.State.Val, true)
	state.From = from
	return m.store.SetState(ctx, change.Key, state)
}

// WithLock executes a function while holding the lock for the key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// sameValue compares values that may have crossed a JSON boundary
// (e.g. 12 vs json.Number("12")).
func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
