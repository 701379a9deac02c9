package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store. States live under
// <prefix>state:, change channels under <prefix>changes: and the key index at
// <prefix>meta:index, so no state key can overwrite store bookkeeping.
const DefaultPrefix = "shutter:"

var (
	_ ports.StateStore  = (*Store)(nil)
	_ ports.StateLister = (*Store)(nil)
)

// Store implements ports.StateStore using Redis.
// States are JSON documents; writes are announced on a per-key pub/sub channel.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	buffer int
}

type Option func(*Store)

// WithTTL sets the expiration for states.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for states.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithSubscriberBuffer sets the channel size handed to subscribers.
func WithSubscriberBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
		buffer: 64,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(key string) string {
	return s.prefix + "state:" + key
}

func (s *Store) channel(key string) string {
	return s.prefix + "changes:" + key
}

func (s *Store) indexKey() string {
	return s.prefix + "meta:index"
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetState retrieves the state from Redis.
func (s *Store) GetState(ctx context.Context, key string) (*domain.State, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	state, err := decodeState(val)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state %s: %w", key, err)
	}
	return &state, nil
}

// SetState persists the state and publishes the change in a single transaction.
func (s *Store) SetState(ctx context.Context, key string, state domain.State) error {
	if state.Ts.IsZero() {
		state.Ts = time.Now().UTC()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	change, err := json.Marshal(domain.StateChange{Key: key, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), key)
	pipe.Publish(ctx, s.channel(key), change)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Subscribe listens on the change channel of key.
// The subscription is confirmed before Subscribe returns, so no write issued
// afterwards is missed.
func (s *Store) Subscribe(ctx context.Context, key string) (<-chan domain.StateChange, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	out := make(chan domain.StateChange, s.buffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change domain.StateChange
				dec := json.NewDecoder(strings.NewReader(msg.Payload))
				dec.UseNumber()
				if err := dec.Decode(&change); err != nil {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Delete removes a state. Subscribers are not notified.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(key))
	pipe.SRem(ctx, s.indexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the keys written through this store, pruning expired ones lazily.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}

	live := make([]string, 0, len(keys))
	for _, k := range keys {
		n, err := s.client.Exists(ctx, s.key(k)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check state %s: %w", k, err)
		}
		if n == 0 {
			s.client.SRem(ctx, s.indexKey(), k)
			continue
		}
		live = append(live, k)
	}
	return live, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// decodeState keeps numbers as json.Number so integers survive the round trip.
func decodeState(data []byte) (domain.State, error) {
	var state domain.State
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	err := dec.Decode(&state)
	return state, err
}
