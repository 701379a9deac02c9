package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/shutter/pkg/adapters/memory"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemoryStore_SeedDoesNotNotify(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Subscribe(ctx, "url")
	require.NoError(t, err)

	store.Seed(map[string]any{"url": "https://example.com", "renderTime": 100})

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %v", c)
	case <-time.After(50 * time.Millisecond):
	}

	s, err := store.GetState(ctx, "renderTime")
	require.NoError(t, err)
	assert.Equal(t, 100, s.Val)
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"url", "renderTime"}, keys)
}

func TestMemoryStore_CopyOnRead(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SetState(ctx, "filename", domain.NewState("/tmp/a.png", false)))

	s, err := store.GetState(ctx, "filename")
	require.NoError(t, err)
	s.Val = "/tmp/mutated.png"

	again, err := store.GetState(ctx, "filename")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.png", again.Val)
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := store.Subscribe(ctx, "url")
	require.NoError(t, err)
	b, err := store.Subscribe(ctx, "url")
	require.NoError(t, err)

	require.NoError(t, store.SetState(ctx, "url", domain.NewState("https://example.com", false)))

	for _, ch := range []<-chan domain.StateChange{a, b} {
		select {
		case c := <-ch:
			assert.Equal(t, "https://example.com", c.State.Val)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive change")
		}
	}
}

func TestMemoryStore_CancelledWriteIsNotStored(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.SetState(ctx, "url", domain.NewState("https://example.com", false))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.GetState(context.Background(), "url")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestMemoryStore_FullSubscriberDoesNotFailWrite(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := store.Subscribe(ctx, "url")
	require.NoError(t, err)

	for i := 0; i < memory.DefaultSubscriberBuffer+5; i++ {
		require.NoError(t, store.SetState(ctx, "url", domain.NewState(i, false)))
	}

	s, err := store.GetState(ctx, "url")
	require.NoError(t, err)
	assert.Equal(t, memory.DefaultSubscriberBuffer+4, s.Val)
}
