package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/shutter/internal/testutils"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

func newTestSequencer(t *testing.T, browser *testutils.FakeBrowser, cfg ports.MapReader, opts ...Option) *Sequencer {
	t.Helper()
	session := NewSession()
	require.NoError(t, session.Open(context.Background(), browser.Launcher()))
	t.Cleanup(func() { session.Close(context.Background()) })
	return NewSequencer(session, NewResolver(cfg, nil), opts...)
}

// countingAck records how many times the trigger was acknowledged.
type countingAck struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *countingAck) fn(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.err
}

func (a *countingAck) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func TestSequencer_MissingFilenameAbortsBeforeNavigation(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{domain.KeyFullPage: true})
	ack := &countingAck{}

	err := seq.HandleTrigger(context.Background(), "https://example.com", ack.fn)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	rec := browser.Snapshot()
	assert.Empty(t, rec.Navigated)
	assert.Empty(t, rec.Sequence, "no page should be opened")
	assert.Zero(t, ack.count())
}

func TestSequencer_CapturesAndAcknowledges(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{
		domain.KeyFilename: "/tmp/out.png",
		domain.KeyFullPage: false,
	})
	ack := &countingAck{}

	err := seq.HandleTrigger(context.Background(), "https://example.com", ack.fn)
	require.NoError(t, err)

	rec := browser.Snapshot()
	assert.Equal(t, []string{"newPage", "navigate", "capture", "closePage"}, rec.Sequence)
	assert.Equal(t, []string{"https://example.com"}, rec.Navigated)
	require.Len(t, rec.Captures, 1)
	assert.Equal(t, "/tmp/out.png", rec.Captures[0].TargetPath)
	assert.Nil(t, rec.Captures[0].Clip)
	assert.Equal(t, 1, ack.count())
	assert.Equal(t, 1, rec.PageCloses)
}

func TestSequencer_FullPageDropsClip(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{
		domain.KeyFilename:   "/tmp/out.png",
		domain.KeyFullPage:   true,
		domain.KeyClipLeft:   0,
		domain.KeyClipTop:    0,
		domain.KeyClipWidth:  100,
		domain.KeyClipHeight: 100,
	})

	require.NoError(t, seq.HandleTrigger(context.Background(), "https://example.com", nil))

	rec := browser.Snapshot()
	require.Len(t, rec.Captures, 1)
	assert.True(t, rec.Captures[0].FullPage)
	assert.Nil(t, rec.Captures[0].Clip)
}

func TestSequencer_NavigationFailureReleasesPage(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	browser.NavErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	seq := newTestSequencer(t, browser, ports.MapReader{domain.KeyFilename: "/tmp/out.png"})
	ack := &countingAck{}

	err := seq.HandleTrigger(context.Background(), "https://nope.invalid", ack.fn)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNavigation)
	assert.ErrorIs(t, err, browser.NavErr)

	var captureErr *domain.CaptureError
	require.ErrorAs(t, err, &captureErr)
	assert.Equal(t, domain.PhaseNavigating, captureErr.Phase)
	assert.Equal(t, "https://nope.invalid", captureErr.URL)

	rec := browser.Snapshot()
	assert.Equal(t, 1, rec.PageCloses)
	assert.Empty(t, rec.Captures)
	assert.Zero(t, ack.count())
}

func TestSequencer_FailureKinds(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*testutils.FakeBrowser)
		cfg    ports.MapReader
		kind   error
		phase  domain.Phase
		closes int
	}{
		{
			name:   "selector never appears",
			setup:  func(b *testutils.FakeBrowser) { b.WaitErr = context.DeadlineExceeded },
			cfg:    ports.MapReader{domain.KeyFilename: "a.png", domain.KeyWaitForSelector: "#ready"},
			kind:   domain.ErrWait,
			phase:  domain.PhaseWaiting,
			closes: 1,
		},
		{
			name:   "capture fails",
			setup:  func(b *testutils.FakeBrowser) { b.CaptureErr = errors.New("disk full") },
			cfg:    ports.MapReader{domain.KeyFilename: "a.png"},
			kind:   domain.ErrCapture,
			phase:  domain.PhaseCapturing,
			closes: 1,
		},
		{
			name:   "page cannot be opened",
			setup:  func(b *testutils.FakeBrowser) { b.NewPageErr = errors.New("target closed") },
			cfg:    ports.MapReader{domain.KeyFilename: "a.png"},
			kind:   domain.ErrNavigation,
			phase:  domain.PhaseIdle,
			closes: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			browser := testutils.NewFakeBrowser()
			tt.setup(browser)
			seq := newTestSequencer(t, browser, tt.cfg)
			ack := &countingAck{}

			err := seq.HandleTrigger(context.Background(), "https://example.com", ack.fn)

			assert.ErrorIs(t, err, tt.kind)
			var captureErr *domain.CaptureError
			require.ErrorAs(t, err, &captureErr)
			assert.Equal(t, tt.phase, captureErr.Phase)
			assert.Equal(t, tt.closes, browser.Snapshot().PageCloses)
			assert.Zero(t, ack.count())
		})
	}
}

func TestSequencer_AckFailureIsReported(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{domain.KeyFilename: "a.png"})
	ack := &countingAck{err: errors.New("store down")}

	err := seq.HandleTrigger(context.Background(), "https://example.com", ack.fn)

	assert.ErrorIs(t, err, ack.err)
	assert.Equal(t, 1, ack.count())
	assert.Equal(t, 1, browser.Snapshot().PageCloses)
}

func TestSequencer_SelectorWait(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{
		domain.KeyFilename:        "a.png",
		domain.KeyWaitForSelector: "#chart",
		domain.KeyRenderTime:      60000,
	})

	start := time.Now()
	require.NoError(t, seq.HandleTrigger(context.Background(), "https://example.com", nil))

	assert.Less(t, time.Since(start), 5*time.Second, "render time must be ignored when a selector is set")
	rec := browser.Snapshot()
	assert.Equal(t, []string{"#chart"}, rec.Selectors)
	assert.Equal(t, []string{"newPage", "navigate", "waitForSelector", "capture", "closePage"}, rec.Sequence)
}

func TestSequencer_FixedDelay(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{
		domain.KeyFilename:   "a.png",
		domain.KeyRenderTime: 50,
	})

	start := time.Now()
	require.NoError(t, seq.HandleTrigger(context.Background(), "https://example.com", nil))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSequencer_FixedDelayHonoursContext(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{
		domain.KeyFilename:   "a.png",
		domain.KeyRenderTime: 60000,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := seq.HandleTrigger(ctx, "https://example.com", nil)
	assert.ErrorIs(t, err, domain.ErrWait)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, browser.Snapshot().PageCloses)
}

func TestSequencer_InactiveSessionIgnoresTrigger(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	session := NewSession()
	seq := NewSequencer(session, NewResolver(ports.MapReader{domain.KeyFilename: "a.png"}, nil))

	// Never opened.
	require.NoError(t, seq.HandleTrigger(context.Background(), "https://example.com", nil))

	require.NoError(t, session.Open(context.Background(), browser.Launcher()))
	session.Close(context.Background())

	// Torn down.
	require.NoError(t, seq.HandleTrigger(context.Background(), "https://example.com", nil))
	assert.Equal(t, []string{"closeBrowser"}, browser.Snapshot().Sequence)

	_, err := seq.Capture(context.Background(), "https://example.com", domain.CaptureRequest{}, domain.NoWait())
	assert.ErrorIs(t, err, domain.ErrSessionUnavailable)
}

func TestSequencer_DirectCapture(t *testing.T) {
	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{domain.KeyFilename: "ignored.png"})

	req := domain.CaptureRequest{Clip: &domain.ClipRegion{Width: 10, Height: 10}}
	data, err := seq.Capture(context.Background(), "https://example.com", req, domain.NoWait())

	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	rec := browser.Snapshot()
	require.Len(t, rec.Captures, 1)
	assert.Equal(t, req, rec.Captures[0])
}

func TestSequencer_Hooks(t *testing.T) {
	var (
		mu       sync.Mutex
		phases   []domain.Phase
		captured []*domain.CaptureEvent
		failed   []*domain.CaptureEvent
	)
	hooks := domain.LifecycleHooks{
		OnPhase: func(_ context.Context, e *domain.PhaseEvent) {
			mu.Lock()
			defer mu.Unlock()
			phases = append(phases, e.Phase)
		},
		OnCaptured: func(_ context.Context, e *domain.CaptureEvent) {
			mu.Lock()
			defer mu.Unlock()
			captured = append(captured, e)
		},
		OnFailed: func(_ context.Context, e *domain.CaptureEvent) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, e)
		},
	}

	browser := testutils.NewFakeBrowser()
	seq := newTestSequencer(t, browser, ports.MapReader{domain.KeyFilename: "a.png", domain.KeyRenderTime: 1}, WithHooks(hooks))
	require.NoError(t, seq.HandleTrigger(context.Background(), "https://example.com", nil))

	mu.Lock()
	assert.Equal(t, []domain.Phase{
		domain.PhaseNavigating, domain.PhaseWaiting, domain.PhaseCapturing, domain.PhaseAcknowledged,
	}, phases)
	require.Len(t, captured, 1)
	assert.Equal(t, "a.png", captured[0].Path)
	assert.Equal(t, len("png"), captured[0].Bytes)
	assert.Equal(t, "delay(1ms)", captured[0].Wait)
	assert.NotEmpty(t, captured[0].CaptureID)
	assert.Empty(t, failed)
	phases = nil
	mu.Unlock()

	browser.NavErr = errors.New("boom")
	require.Error(t, seq.HandleTrigger(context.Background(), "https://example.com", nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.Phase{domain.PhaseNavigating, domain.PhaseFailed}, phases)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, domain.ErrNavigation)
}
