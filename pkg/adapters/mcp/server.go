package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/shutter"
	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

const statesURI = "shutter://states"

// Bridge is the part of the screenshot bridge exposed to MCP clients.
type Bridge interface {
	Trigger(ctx context.Context, url string) error
	Capture(ctx context.Context, url string, req domain.CaptureRequest, wait domain.WaitStrategy) ([]byte, error)
}

// StateResponse is the structured result of the state tools.
type StateResponse struct {
	Key   string        `json:"key" jsonschema_description:"Full state key"`
	State *domain.State `json:"state" jsonschema_description:"Current value, acknowledgement flag and timestamp"`
}

// CaptureResponse is returned when a screenshot was written to disk.
type CaptureResponse struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

type keyArgs struct {
	Key string `json:"key"`
}

type setArgs struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Ack   bool   `json:"ack"`
}

type requestArgs struct {
	URL string `json:"url"`
}

type captureArgs struct {
	URL             string  `json:"url"`
	Path            string  `json:"path"`
	FullPage        bool    `json:"full_page"`
	WaitForSelector string  `json:"wait_for_selector"`
	RenderTime      float64 `json:"render_time"`
}

// Server exposes the state store and the bridge as an MCP server.
type Server struct {
	store     ports.StateStore
	bridge    Bridge
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(store ports.StateStore, bridge Bridge, opts ...Option) *Server {
	s := &Server{
		store:     store,
		bridge:    bridge,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("shutter-mcp", strings.TrimSpace(shutter.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: get_state
	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read a state from the store."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Full state key, e.g. shutter.0.url")),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	// TOOL: set_state
	s.mcpServer.AddTool(mcp.NewTool("set_state",
		mcp.WithDescription("Write a state to the store. Values that parse as JSON are stored decoded."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Full state key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value, e.g. /tmp/out.png, true or 1500")),
		mcp.WithBoolean("ack", mcp.Description("Write as an acknowledgement rather than a command")),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetState))

	// TOOL: request_screenshot
	s.mcpServer.AddTool(mcp.NewTool("request_screenshot",
		mcp.WithDescription("Trigger a capture through the store. The remaining parameters are read from the configured states."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Page to capture")),
	), s.handleRequestScreenshot)

	// TOOL: capture_screenshot
	s.mcpServer.AddTool(mcp.NewTool("capture_screenshot",
		mcp.WithDescription("Capture a page directly. Returns the PNG unless path is given."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Page to capture")),
		mcp.WithString("path", mcp.Description("Write the image to this file instead of returning it")),
		mcp.WithBoolean("full_page", mcp.Description("Capture the full scrollable page")),
		mcp.WithString("wait_for_selector", mcp.Description("CSS selector to await before capture")),
		mcp.WithNumber("render_time", mcp.Description("Fixed delay in milliseconds before capture")),
	), s.handleCaptureScreenshot)
}

func (s *Server) handleGetState(ctx context.Context, _ mcp.CallToolRequest, args keyArgs) (StateResponse, error) {
	if args.Key == "" {
		return StateResponse{}, errors.New("key is required")
	}
	state, err := s.store.GetState(ctx, args.Key)
	if err != nil {
		return StateResponse{}, fmt.Errorf("get %s: %w", args.Key, err)
	}
	return StateResponse{Key: args.Key, State: state}, nil
}

func (s *Server) handleSetState(ctx context.Context, _ mcp.CallToolRequest, args setArgs) (StateResponse, error) {
	if args.Key == "" {
		return StateResponse{}, errors.New("key is required")
	}
	state := domain.NewState(domain.ParseValue(args.Value), args.Ack)
	state.From = "mcp"
	if err := s.store.SetState(ctx, args.Key, state); err != nil {
		return StateResponse{}, fmt.Errorf("set %s: %w", args.Key, err)
	}
	return StateResponse{Key: args.Key, State: &state}, nil
}

func (s *Server) handleRequestScreenshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args requestArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.URL == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	if err := s.bridge.Trigger(ctx, args.URL); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trigger failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("capture of %s requested", args.URL)), nil
}

func (s *Server) handleCaptureScreenshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args captureArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.URL == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	wait := domain.ExplicitWait(args.WaitForSelector, args.RenderTime)
	req := domain.CaptureRequest{TargetPath: args.Path, FullPage: args.FullPage}
	img, err := s.bridge.Capture(ctx, args.URL, req, wait)
	if err != nil {
		s.logger.Warn("MCP capture failed", "url", args.URL, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("capture failed: %v", err)), nil
	}

	if args.Path == "" {
		return mcp.NewToolResultImage(fmt.Sprintf("screenshot of %s", args.URL),
			base64.StdEncoding.EncodeToString(img), "image/png"), nil
	}
	out, _ := json.Marshal(CaptureResponse{Path: args.Path, Bytes: len(img)})
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) registerResources() {
	lister, ok := s.store.(ports.StateLister)
	if !ok {
		return
	}

	// EXPOSE: shutter://states
	s.mcpServer.AddResource(mcp.NewResource(statesURI, "Stored states",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		states, err := snapshot(ctx, s.store, lister)
		if err != nil {
			return nil, err
		}
		jsonBytes, _ := json.Marshal(states)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      statesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func snapshot(ctx context.Context, store ports.StateStore, lister ports.StateLister) (map[string]*domain.State, error) {
	keys, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	states := make(map[string]*domain.State, len(keys))
	for _, key := range keys {
		state, err := store.GetState(ctx, key)
		if errors.Is(err, domain.ErrStateNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		states[key] = state
	}
	return states, nil
}
