package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/shutter/pkg/adapters/memory"
	"github.com/aretw0/shutter/pkg/domain"
)

type mockBridge struct {
	triggered []string
	gotReq    domain.CaptureRequest
	gotWait   domain.WaitStrategy
	err       error
}

func (m *mockBridge) Trigger(_ context.Context, url string) error {
	m.triggered = append(m.triggered, url)
	return m.err
}

func (m *mockBridge) Capture(_ context.Context, _ string, req domain.CaptureRequest, wait domain.WaitStrategy) ([]byte, error) {
	m.gotReq, m.gotWait = req, wait
	if m.err != nil {
		return nil, m.err
	}
	return []byte("\x89PNG"), nil
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestSetThenGetState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := NewServer(store, &mockBridge{})

	res, err := mcp.NewStructuredToolHandler(s.handleSetState)(ctx, call(map[string]any{
		"key":   "shutter.0.renderTime",
		"value": "1500",
		"ack":   true,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	state, err := store.GetState(ctx, "shutter.0.renderTime")
	require.NoError(t, err)
	n, ok := domain.Number(state.Val)
	require.True(t, ok)
	assert.Equal(t, 1500.0, n)
	assert.True(t, state.Ack)
	assert.Equal(t, "mcp", state.From)

	res, err = mcp.NewStructuredToolHandler(s.handleGetState)(ctx, call(map[string]any{"key": "shutter.0.renderTime"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var got StateResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, "shutter.0.renderTime", got.Key)
	assert.True(t, got.State.Ack)
}

func TestGetState_Missing(t *testing.T) {
	s := NewServer(memory.NewStore(), &mockBridge{})

	res, err := mcp.NewStructuredToolHandler(s.handleGetState)(context.Background(), call(map[string]any{"key": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "state not found")
}

func TestRequestScreenshot(t *testing.T) {
	bridge := &mockBridge{}
	s := NewServer(memory.NewStore(), bridge)

	res, err := s.handleRequestScreenshot(context.Background(), call(map[string]any{"url": "https://example.com"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"https://example.com"}, bridge.triggered)

	res, err = s.handleRequestScreenshot(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCaptureScreenshot_ReturnsImage(t *testing.T) {
	bridge := &mockBridge{}
	s := NewServer(memory.NewStore(), bridge)

	res, err := s.handleCaptureScreenshot(context.Background(), call(map[string]any{
		"url":               "https://example.com",
		"full_page":         true,
		"wait_for_selector": "#app",
		"render_time":       250,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var img *mcp.ImageContent
	for _, c := range res.Content {
		if ic, ok := c.(mcp.ImageContent); ok {
			img = &ic
		}
	}
	require.NotNil(t, img, "expected image content")
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("\x89PNG")), img.Data)

	assert.True(t, bridge.gotReq.FullPage)
	assert.Equal(t, domain.WaitForSelector("#app"), bridge.gotWait, "selector takes precedence over render_time")
}

func TestCaptureScreenshot_ToFile(t *testing.T) {
	bridge := &mockBridge{}
	s := NewServer(memory.NewStore(), bridge)

	res, err := s.handleCaptureScreenshot(context.Background(), call(map[string]any{
		"url":         "https://example.com",
		"path":        "/tmp/out.png",
		"render_time": 250,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.JSONEq(t, `{"path":"/tmp/out.png","bytes":4}`, text(t, res))
	assert.Equal(t, "/tmp/out.png", bridge.gotReq.TargetPath)
	assert.Equal(t, domain.WaitForMillis(250), bridge.gotWait)
}

func TestCaptureScreenshot_Failure(t *testing.T) {
	bridge := &mockBridge{err: domain.NewCaptureError(domain.ErrNavigation, domain.PhaseNavigating, "https://bad", errors.New("net::ERR"))}
	s := NewServer(memory.NewStore(), bridge)

	res, err := s.handleCaptureScreenshot(context.Background(), call(map[string]any{"url": "https://bad"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "navigation error")
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Seed(map[string]any{"shutter.0.filename": "/tmp/a.png", "shutter.0.fullPage": true})

	states, err := snapshot(ctx, store, store)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "/tmp/a.png", states["shutter.0.filename"].Val)
}
