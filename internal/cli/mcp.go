package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/shutter"
	"github.com/aretw0/shutter/pkg/adapters/mcp"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// mcpBridge sends triggers to the shared store and runs direct captures on
// a private bridge.
type mcpBridge struct {
	*shutter.Bridge
	store ports.StateStore
	key   string
}

func (b *mcpBridge) Trigger(ctx context.Context, url string) error {
	state := domain.NewState(url, false)
	state.From = "mcp"
	return b.store.SetState(ctx, b.key, state)
}

// ServeMCP exposes the store and direct captures to MCP clients over
// transport ("stdio" or "sse").
func (a *App) ServeMCP(ctx context.Context, transport string, port int) error {
	if transport != "stdio" && transport != "sse" {
		return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
	}

	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	capture, err := a.captureBridge(ctx)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		capture.Stop(stopCtx)
	}()

	srv := mcp.NewServer(store, &mcpBridge{
		Bridge: capture,
		store:  store,
		key:    a.Config.Store.Prefix + domain.KeyURL,
	}, mcp.WithLogger(a.Logger))

	if transport == "sse" {
		a.Logger.Info("Starting MCP server (SSE)", "port", port)
		return srv.ServeSSE(ctx, port)
	}
	a.Logger.Info("Starting MCP server (stdio)")
	return srv.ServeStdio()
}
