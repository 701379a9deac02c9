package testutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// AwaitState polls store until the state under key satisfies cond.
// It fails the test immediately on timeout.
func AwaitState(t *testing.T, store ports.StateStore, key string, cond func(domain.State) bool) domain.State {
	t.Helper()

	var last domain.State
	require.Eventually(t, func() bool {
		state, err := store.GetState(context.Background(), key)
		if errors.Is(err, domain.ErrStateNotFound) {
			return false
		}
		require.NoError(t, err)
		last = *state
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, "state %q never reached the expected value", key)
	return last
}

// Acked matches an acknowledged state holding val.
func Acked(val any) func(domain.State) bool {
	return func(s domain.State) bool {
		return s.Ack && s.Val == val
	}
}
