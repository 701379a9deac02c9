package chrome

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleTracker_SettlesWithoutTraffic(t *testing.T) {
	tracker := newIdleTracker(2, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, tracker.wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestIdleTracker_TwoInflightCountAsIdle(t *testing.T) {
	tracker := newIdleTracker(2, 20*time.Millisecond)
	tracker.handle(&network.EventRequestWillBeSent{RequestID: "a"})
	tracker.handle(&network.EventRequestWillBeSent{RequestID: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tracker.wait(ctx))
}

func TestIdleTracker_BusyNetworkBlocks(t *testing.T) {
	tracker := newIdleTracker(2, 20*time.Millisecond)
	for _, id := range []network.RequestID{"a", "b", "c"} {
		tracker.handle(&network.EventRequestWillBeSent{RequestID: id})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := tracker.wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "3 requests pending")
}

func TestIdleTracker_SettlesOnceRequestsFinish(t *testing.T) {
	tracker := newIdleTracker(2, 20*time.Millisecond)
	for _, id := range []network.RequestID{"a", "b", "c"} {
		tracker.handle(&network.EventRequestWillBeSent{RequestID: id})
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		tracker.handle(&network.EventLoadingFailed{RequestID: "a"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, tracker.wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "quiet period starts after the third request ends")
}

func TestIdleTracker_NewBurstRestartsQuietPeriod(t *testing.T) {
	tracker := newIdleTracker(0, 40*time.Millisecond)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tracker.handle(&network.EventRequestWillBeSent{RequestID: "late"})
		time.Sleep(60 * time.Millisecond)
		tracker.handle(&network.EventLoadingFinished{RequestID: "late"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, tracker.wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
