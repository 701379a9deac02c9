package ports

import (
	"context"
	"errors"

	"github.com/aretw0/shutter/pkg/domain"
)

// ConfigReader is the read-only capability used to resolve capture parameters.
// ok is false when the key is absent.
type ConfigReader interface {
	Get(ctx context.Context, key string) (value any, ok bool, err error)
}

// ConfigReaderFunc adapts a plain function to ConfigReader.
type ConfigReaderFunc func(ctx context.Context, key string) (any, bool, error)

// Get calls f.
func (f ConfigReaderFunc) Get(ctx context.Context, key string) (any, bool, error) {
	return f(ctx, key)
}

// MapReader is a static ConfigReader, mostly useful in tests and one-shot captures.
type MapReader map[string]any

// Get returns the value stored under key.
func (m MapReader) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

// StoreReader reads configuration values from the Val of the states stored under prefix+key.
func StoreReader(store StateStore, prefix string) ConfigReader {
	return ConfigReaderFunc(func(ctx context.Context, key string) (any, bool, error) {
		state, err := store.GetState(ctx, prefix+key)
		if err != nil {
			if errors.Is(err, domain.ErrStateNotFound) {
				return nil, false, nil
			}
			return nil, false, err
		}
		if state.Val == nil {
			return nil, false, nil
		}
		return state.Val, true, nil
	})
}
