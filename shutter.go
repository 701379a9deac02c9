package shutter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/capture"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
	"github.com/aretw0/shutter/pkg/trigger"
)

// DefaultQueueSize is the number of pending triggers kept before new ones are dropped.
const DefaultQueueSize = 16

// AckSource is written into the From field of acknowledgements.
const AckSource = "shutter"

// ErrStopped is returned by Start once the bridge has been stopped.
var ErrStopped = errors.New("bridge stopped")

// Bridge watches the url key of a state store and turns each actionable
// write into a screenshot.
//
// Triggers are queued and handled by a single worker, so at most one capture
// runs at a time per bridge.
type Bridge struct {
	store    ports.StateStore
	launcher ports.Launcher

	prefix      string
	queueSize   int
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	triggerOpts []trigger.Option

	session   *capture.Session
	sequencer *capture.Sequencer
	triggers  *trigger.Manager

	mu       sync.Mutex
	started  bool
	stopping atomic.Bool
	queue    chan domain.StateChange

	cancelSub  context.CancelFunc
	cancelWork context.CancelFunc
	workerDone chan struct{}

	stopOnce sync.Once
	done     chan struct{}
}

// Option defines a functional option for configuring the Bridge.
type Option func(*Bridge)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bridge) {
		b.hooks = b.hooks.Merge(hooks)
	}
}

// WithPrefix namespaces every key the bridge reads and writes (e.g. "shutter.0.").
func WithPrefix(prefix string) Option {
	return func(b *Bridge) {
		b.prefix = prefix
	}
}

// WithQueueSize sets the capacity of the trigger queue.
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithLocker makes triggers exclusive across every bridge sharing the store.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(b *Bridge) {
		b.triggerOpts = append(b.triggerOpts, trigger.WithLocker(locker), trigger.WithLockTTL(ttl))
	}
}

// New creates a Bridge. Nothing is launched until Start.
func New(store ports.StateStore, launcher ports.Launcher, opts ...Option) *Bridge {
	b := &Bridge{
		store:     store,
		launcher:  launcher,
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}

	b.session = capture.NewSession(
		capture.WithSessionLogger(b.logger),
		capture.WithSessionHooks(b.hooks),
	)
	b.sequencer = capture.NewSequencer(
		b.session,
		capture.NewResolver(ports.StoreReader(store, b.prefix), b.logger),
		capture.WithLogger(b.logger),
		capture.WithHooks(b.hooks),
	)
	b.triggers = trigger.NewManager(store, append([]trigger.Option{trigger.WithLogger(b.logger)}, b.triggerOpts...)...)
	return b
}

// Start launches the browser and subscribes to the trigger key.
// ctx bounds the startup only; the bridge runs until Stop. Calling Start on a
// running bridge is a no-op.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopping.Load() {
		return ErrStopped
	}
	if b.started {
		return nil
	}

	if err := b.session.Open(ctx, b.launcher); err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}

	subCtx, cancelSub := context.WithCancel(context.WithoutCancel(ctx))
	changes, err := b.store.Subscribe(subCtx, b.TriggerKey())
	if err != nil {
		cancelSub()
		b.session.Close(ctx)
		return fmt.Errorf("failed to subscribe to %s: %w", b.TriggerKey(), err)
	}

	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	b.queue = make(chan domain.StateChange, b.queueSize)
	b.cancelSub = cancelSub
	b.cancelWork = cancelWork
	b.workerDone = make(chan struct{})
	b.started = true

	go b.pump(changes)
	go b.work(workCtx)

	b.logger.Info("Bridge started", "trigger", b.TriggerKey(), "queue", b.queueSize)
	return nil
}

// TriggerKey is the store key watched for capture requests.
func (b *Bridge) TriggerKey() string {
	return b.prefix + domain.KeyURL
}

// Prefix returns the key namespace.
func (b *Bridge) Prefix() string {
	return b.prefix
}

// Status returns the browser session status.
func (b *Bridge) Status() domain.SessionStatus {
	return b.session.Status()
}

// Trigger requests a capture of url by writing it, unacknowledged, to the trigger key.
func (b *Bridge) Trigger(ctx context.Context, url string) error {
	return b.store.SetState(ctx, b.TriggerKey(), domain.NewState(url, false))
}

// Capture takes a one-off screenshot with explicit parameters, outside the
// trigger protocol. The bridge must be started.
func (b *Bridge) Capture(ctx context.Context, url string, req domain.CaptureRequest, wait domain.WaitStrategy) ([]byte, error) {
	return b.sequencer.Capture(ctx, url, req, wait)
}

// Stop tears the bridge down: it stops listening, lets an in-flight capture
// finish while ctx allows, and closes the browser. Queued triggers are dropped.
// Stop is idempotent and Done is closed when it returns.
func (b *Bridge) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		defer close(b.done)

		b.mu.Lock()
		b.stopping.Store(true)
		started := b.started
		b.mu.Unlock()

		if started {
			b.cancelSub()
			select {
			case <-b.workerDone:
			case <-ctx.Done():
				b.logger.Warn("Abandoning in-flight capture", "err", ctx.Err())
				b.cancelWork()
				<-b.workerDone
			}
			b.cancelWork()
		}

		b.session.Close(ctx)
		b.logger.Info("Bridge stopped")
	})
}

// Done is closed once Stop has completed.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// pump filters store changes into the queue. It is the only sender.
func (b *Bridge) pump(changes <-chan domain.StateChange) {
	defer close(b.queue)
	for change := range changes {
		b.enqueue(change)
	}
}

func (b *Bridge) enqueue(change domain.StateChange) {
	ctx := context.Background()
	if change.State.Ack || !domain.Truthy(change.State.Val) {
		return
	}
	if b.stopping.Load() {
		return
	}
	if b.hooks.OnTrigger != nil {
		b.hooks.OnTrigger(ctx, &change)
	}
	select {
	case b.queue <- change:
		b.logger.Debug("Trigger queued", "url", change.State.Val)
	default:
		b.logger.Warn("Trigger queue full, dropping", "url", change.State.Val, "queue", b.queueSize)
		if b.hooks.OnDropped != nil {
			b.hooks.OnDropped(ctx, &change)
		}
	}
}

func (b *Bridge) work(ctx context.Context) {
	defer close(b.workerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-b.queue:
			if !ok {
				return
			}
			if b.stopping.Load() {
				b.logger.Debug("Dropping queued trigger on shutdown", "url", change.State.Val)
				continue
			}
			b.handle(ctx, change)
		}
	}
}

// handle claims the trigger, captures, and acknowledges with the same value.
// Capture failures are already reported by the sequencer.
func (b *Bridge) handle(ctx context.Context, change domain.StateChange) {
	url, ok := domain.String(change.State.Val)
	if !ok {
		url = fmt.Sprint(change.State.Val)
	}

	ack := func(ctx context.Context) error {
		return b.triggers.Acknowledge(ctx, change, AckSource)
	}

	_, err := b.triggers.Claim(ctx, change, func(ctx context.Context) error {
		return b.sequencer.HandleTrigger(ctx, url, ack)
	})
	if err == nil {
		return
	}
	var captureErr *domain.CaptureError
	if !errors.As(err, &captureErr) {
		b.logger.Error("Trigger handling failed", "url", url, "err", err)
	}
}
