package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/shutter"
	"github.com/aretw0/shutter/internal/config"
	httpAdapter "github.com/aretw0/shutter/pkg/adapters/http"
	"github.com/aretw0/shutter/pkg/adapters/memory"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/observability"
	"github.com/aretw0/shutter/pkg/ports"
)

const (
	shutdownTimeout = 10 * time.Second
	cliSource       = "cli"
)

// RunOptions locate the configuration of a command.
type RunOptions struct {
	ConfigPath string
	// Overrides are "section.name" values set from flags.
	Overrides map[string]any
}

// App carries the configuration and collaborators shared by the commands.
// Store and Launcher are created from the configuration unless set.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Out      io.Writer
	Store    ports.StateStore
	Launcher ports.Launcher

	closeStore func() error
}

// NewApp loads the configuration and builds the logger.
func NewApp(opts RunOptions) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return nil, err
	}
	logger, err := createLogger(os.Stderr, cfg.Log)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, Logger: logger, Out: os.Stdout}, nil
}

// Close releases the store connections.
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	err := a.closeStore()
	a.closeStore = nil
	return err
}

func (a *App) store(ctx context.Context) (ports.StateStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	store, closeFn, err := createStore(ctx, a.Config.Store)
	if err != nil {
		return nil, err
	}
	a.Store, a.closeStore = store, closeFn
	return store, nil
}

func (a *App) launcher() (ports.Launcher, error) {
	if a.Launcher != nil {
		return a.Launcher, nil
	}
	return createLauncher(a.Config.Browser, a.Logger)
}

// Run starts the bridge and the HTTP API and blocks until ctx is cancelled
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	launcher, err := a.launcher()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return err
	}
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(a.Logger))

	bridge, err := createBridge(a.Config, store, launcher, a.Logger, hooks)
	if err != nil {
		return err
	}
	if err := bridge.Start(ctx); err != nil {
		return err
	}
	a.Logger.Info("Watching for capture requests", "key", bridge.TriggerKey(), "engine", a.Config.Browser.Engine, "store", a.Config.Store.Driver)

	g, gctx := errgroup.WithContext(ctx)

	if addr := a.Config.HTTP.Addr; addr != "" {
		handlerOpts := []httpAdapter.Option{httpAdapter.WithLogger(a.Logger)}
		if a.Config.HTTP.Metrics {
			handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           httpAdapter.NewHandler(store, bridge, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			a.Logger.Info("HTTP API listening", "address", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Warn("HTTP shutdown did not complete", "err", err)
				return srv.Close()
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		bridge.Stop(stopCtx)
		return nil
	})

	return g.Wait()
}

// Get prints the state stored under key.
func (a *App) Get(ctx context.Context, key string) error {
	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	state, err := store.GetState(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return writeJSON(a.Out, state)
}

// List prints every stored key.
func (a *App) List(ctx context.Context) error {
	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	lister, ok := store.(ports.StateLister)
	if !ok {
		return fmt.Errorf("the %s store cannot list keys", a.Config.Store.Driver)
	}
	keys, err := lister.List(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(a.Out, k)
	}
	return nil
}

// Set writes raw, parsed as JSON when possible, under key.
func (a *App) Set(ctx context.Context, key, raw string, ack bool) error {
	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	state := domain.NewState(domain.ParseValue(raw), ack)
	state.From = cliSource
	if err := store.SetState(ctx, key, state); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Trigger requests a capture of url from a running bridge.
func (a *App) Trigger(ctx context.Context, url string) error {
	key := a.Config.Store.Prefix + domain.KeyURL
	if err := a.Set(ctx, key, url, false); err != nil {
		return err
	}
	printSystemMessage(a.Out, "Capture of %s requested on '%s'.", url, key)
	return nil
}

// CaptureOptions are the explicit parameters of a one-off capture.
type CaptureOptions struct {
	// Output is the image path. Empty or "-" writes the PNG to Out.
	Output     string
	FullPage   bool
	Selector   string
	RenderTime float64
	Clip       *domain.ClipRegion
}

// Capture takes a single screenshot without going through the store.
func (a *App) Capture(ctx context.Context, url string, opts CaptureOptions) error {
	bridge, err := a.captureBridge(ctx)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		bridge.Stop(stopCtx)
	}()

	req := domain.CaptureRequest{FullPage: opts.FullPage, Clip: opts.Clip}
	toStdout := opts.Output == "" || opts.Output == "-"
	if !toStdout {
		req.TargetPath = opts.Output
	}

	img, err := bridge.Capture(ctx, url, req, domain.ExplicitWait(opts.Selector, opts.RenderTime))
	if err != nil {
		return err
	}
	if toStdout {
		_, err = a.Out.Write(img)
		return err
	}
	a.Logger.Info("Screenshot written", "path", opts.Output, "bytes", len(img))
	return nil
}

// captureBridge starts a bridge over a private in-memory store, so that
// one-off captures never consume triggers meant for the daemon.
func (a *App) captureBridge(ctx context.Context) (*shutter.Bridge, error) {
	launcher, err := a.launcher()
	if err != nil {
		return nil, err
	}
	bridge := shutter.New(memory.NewStore(), launcher, shutter.WithLogger(a.Logger))
	if err := bridge.Start(ctx); err != nil {
		return nil, err
	}
	return bridge, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
