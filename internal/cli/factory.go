package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/shutter"
	"github.com/aretw0/shutter/internal/config"
	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/adapters/chrome"
	"github.com/aretw0/shutter/pkg/adapters/memory"
	"github.com/aretw0/shutter/pkg/adapters/playwright"
	"github.com/aretw0/shutter/pkg/adapters/redis"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// createLogger builds the process logger from the log section.
func createLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(w, level, logging.Format(cfg.Format)), nil
}

// createStore opens the configured state store. The returned func releases
// its connections.
func createStore(ctx context.Context, cfg config.StoreConfig) (ports.StateStore, func() error, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), func() error { return nil }, nil
	case config.DriverRedis:
		store := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			redis.WithPrefix(cfg.Namespace),
			redis.WithTTL(cfg.TTL),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis at %s is unreachable: %w", cfg.RedisAddr, err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// createLocker returns the distributed lock for replicas sharing a Redis
// store, or nil when it is disabled.
func createLocker(store ports.StateStore, cfg *config.Config) (ports.DistributedLocker, error) {
	if !cfg.Bridge.DistributedLock {
		return nil, nil
	}
	rs, ok := store.(*redis.Store)
	if !ok {
		return nil, fmt.Errorf("distributed lock requires the %s store", config.DriverRedis)
	}
	return redis.NewLocker(rs.Client(), cfg.Store.Namespace), nil
}

// createLauncher maps the browser section onto the selected engine.
func createLauncher(cfg config.BrowserConfig, logger *slog.Logger) (ports.Launcher, error) {
	switch cfg.Engine {
	case config.EngineChrome:
		return chrome.NewLauncher(chrome.Config{
			RemoteURL:         cfg.RemoteURL,
			ExecPath:          cfg.ExecPath,
			UserDataDir:       cfg.UserDataDir,
			Headless:          cfg.Headless,
			Args:              cfg.Args,
			ViewportWidth:     cfg.ViewportWidth,
			ViewportHeight:    cfg.ViewportHeight,
			NavigationTimeout: cfg.NavigationTimeout,
			WaitTimeout:       cfg.WaitTimeout,
			CaptureTimeout:    cfg.CaptureTimeout,
		}, chrome.WithLogger(logger)), nil
	case config.EnginePlaywright:
		return playwright.NewLauncher(playwright.Config{
			Browser:           cfg.Product,
			ExecPath:          cfg.ExecPath,
			Headless:          cfg.Headless,
			Args:              cfg.Args,
			Install:           cfg.Install,
			ViewportWidth:     cfg.ViewportWidth,
			ViewportHeight:    cfg.ViewportHeight,
			NavigationTimeout: cfg.NavigationTimeout,
			WaitTimeout:       cfg.WaitTimeout,
		}, playwright.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}

// createBridge wires the bridge with the standard options.
func createBridge(cfg *config.Config, store ports.StateStore, launcher ports.Launcher, logger *slog.Logger, hooks domain.LifecycleHooks) (*shutter.Bridge, error) {
	opts := []shutter.Option{
		shutter.WithLogger(logger),
		shutter.WithPrefix(cfg.Store.Prefix),
		shutter.WithQueueSize(cfg.Bridge.QueueSize),
		shutter.WithLifecycleHooks(hooks),
	}

	locker, err := createLocker(store, cfg)
	if err != nil {
		return nil, err
	}
	if locker != nil {
		opts = append(opts, shutter.WithLocker(locker, cfg.Store.LockTTL))
	}

	return shutter.New(store, launcher, opts...), nil
}
