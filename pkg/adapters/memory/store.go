package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// DefaultSubscriberBuffer is the number of changes buffered per subscriber.
const DefaultSubscriberBuffer = 64

var (
	_ ports.StateStore  = (*Store)(nil)
	_ ports.StateLister = (*Store)(nil)
)

type subscriber struct {
	key string
	ch  chan domain.StateChange
}

// Store implements ports.StateStore in memory.
// Safe for concurrent use. Subscribers that fall more than
// DefaultSubscriberBuffer changes behind miss notifications.
type Store struct {
	mu     sync.RWMutex
	data   map[string]domain.State
	subs   map[int64]*subscriber
	nextID int64
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.State),
		subs: make(map[int64]*subscriber),
	}
}

// Seed writes values without notifying subscribers.
func (s *Store) Seed(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.data[k] = domain.NewState(v, true)
	}
}

// GetState retrieves the state from memory.
func (s *Store) GetState(ctx context.Context, key string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[key]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	// Copy on read so callers can't mutate store state directly by pointer.
	ret := state
	return &ret, nil
}

// SetState persists the state in memory and fans the change out to subscribers.
func (s *Store) SetState(ctx context.Context, key string, state domain.State) error {
	if state.Ts.IsZero() {
		state.Ts = time.Now().UTC()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data[key] = state
	s.mu.Unlock()

	// Once stored the write has happened; slow subscribers miss the change.
	change := domain.StateChange{Key: key, State: state}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.key != key {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for key until ctx is done.
func (s *Store) Subscribe(ctx context.Context, key string) (<-chan domain.StateChange, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	sub := &subscriber{key: key, ch: make(chan domain.StateChange, DefaultSubscriberBuffer)}
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		close(sub.ch)
	}()

	return sub.ch, nil
}

// List returns every key currently held.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}
