package ports

import (
	"context"

	"github.com/aretw0/shutter/pkg/domain"
)

// StateStore defines the interface of the external key/value platform.
// Keys are full state identifiers (the caller applies any prefix).
type StateStore interface {
	// GetState retrieves the state for a given key.
	// Returns domain.ErrStateNotFound if the key was never written.
	GetState(ctx context.Context, key string) (*domain.State, error)

	// SetState persists the state and notifies subscribers of the key.
	SetState(ctx context.Context, key string, state domain.State) error

	// Subscribe delivers a StateChange for every subsequent write to key.
	// The returned channel is closed once ctx is done.
	Subscribe(ctx context.Context, key string) (<-chan domain.StateChange, error)
}

// StateLister is implemented by stores that can enumerate their keys.
type StateLister interface {
	List(ctx context.Context) ([]string, error)
}
