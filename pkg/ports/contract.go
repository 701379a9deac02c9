package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	key := "contract." + time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		err := store.SetState(ctx, key+".filename", domain.NewState("/tmp/out.png", false))
		require.NoError(t, err, "SetState should not return error")

		loaded, err := store.GetState(ctx, key+".filename")
		require.NoError(t, err, "GetState should not return error")
		assert.Equal(t, "/tmp/out.png", loaded.Val)
		assert.False(t, loaded.Ack)
		assert.False(t, loaded.Ts.IsZero(), "timestamp should survive persistence")
	})

	t.Run("Numbers stay numeric", func(t *testing.T) {
		require.NoError(t, store.SetState(ctx, key+".clipWidth", domain.NewState(640, true)))

		loaded, err := store.GetState(ctx, key+".clipWidth")
		require.NoError(t, err)
		// JSON persistence often converts int to float64; only numeric-ness is part of the contract.
		n, ok := domain.Number(loaded.Val)
		assert.True(t, ok, "expected numeric value, got %T", loaded.Val)
		assert.Equal(t, float64(640), n)
		assert.True(t, loaded.Ack)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetState(ctx, key+".missing")
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("Subscribe", func(t *testing.T) {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		changes, err := store.Subscribe(subCtx, key+".url")
		require.NoError(t, err)

		require.NoError(t, store.SetState(ctx, key+".other", domain.NewState("ignored", false)))
		require.NoError(t, store.SetState(ctx, key+".url", domain.NewState("https://example.com", false)))

		select {
		case change := <-changes:
			assert.Equal(t, key+".url", change.Key)
			assert.Equal(t, "https://example.com", change.State.Val)
			assert.False(t, change.State.Ack)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for state change")
		}

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, open := <-changes:
				return !open
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond, "channel should close after cancel")
	})
}
