package capture

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// configValue draws an arbitrary external value, numeric or not.
func configValue() *rapid.Generator[any] {
	return rapid.OneOf(
		rapid.Just[any](nil),
		rapid.Map(rapid.Float64Range(-5000, 5000), func(f float64) any { return f }),
		rapid.Map(rapid.IntRange(-5000, 5000), func(i int) any { return i }),
		rapid.Map(rapid.String(), func(s string) any { return s }),
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
	)
}

// snapshot draws a configuration where each key may be absent.
func snapshot(t *rapid.T, keys ...string) ports.MapReader {
	m := ports.MapReader{}
	for _, k := range keys {
		if rapid.Bool().Draw(t, k+"_present") {
			m[k] = configValue().Draw(t, k)
		}
	}
	return m
}

var allClipKeys = []string{domain.KeyClipLeft, domain.KeyClipTop, domain.KeyClipWidth, domain.KeyClipHeight}

func TestResolver_FullPageNeverClips(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := snapshot(rt, allClipKeys...)
		cfg[domain.KeyFullPage] = rapid.SampledFrom([]any{true, 1, "yes", json.Number("3")}).Draw(rt, "fullPage")

		req, err := NewResolver(cfg, nil).ResolveCaptureRequest(context.Background())
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if !req.FullPage {
			rt.Fatalf("expected full page for %v", cfg[domain.KeyFullPage])
		}
		if req.Clip != nil {
			rt.Fatalf("full page request carries clip %+v", req.Clip)
		}
	})
}

func TestResolver_PartialClipIsDiscarded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numeric := rapid.IntRange(0, 3).Draw(rt, "numeric")
		keys := rapid.Permutation(allClipKeys).Draw(rt, "order")

		cfg := ports.MapReader{}
		for i, k := range keys {
			if i < numeric {
				cfg[k] = rapid.Float64Range(0, 2000).Draw(rt, k)
				continue
			}
			// Absent or non-numeric.
			if rapid.Bool().Draw(rt, k+"_present") {
				cfg[k] = rapid.SampledFrom([]any{"100", nil, true, "", []int{1}}).Draw(rt, k+"_junk")
			}
		}

		req, err := NewResolver(cfg, nil).ResolveCaptureRequest(context.Background())
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if req.Clip != nil {
			rt.Fatalf("expected no clip with %d numeric keys, got %+v", numeric, req.Clip)
		}
	})
}

func TestResolver_SelectorBeatsRenderTime(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		selector := rapid.StringMatching(`[#.]?[a-z][a-z0-9-]{0,12}`).Draw(rt, "selector")
		cfg := snapshot(rt, domain.KeyRenderTime)
		cfg[domain.KeyWaitForSelector] = selector

		wait, err := NewResolver(cfg, nil).ResolveWaitStrategy(context.Background())
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if wait != domain.WaitForSelector(selector) {
			rt.Fatalf("expected selector(%s), got %s", selector, wait)
		}
	})
}

func TestResolver_RenderTimeWithoutSelector(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ms := rapid.IntRange(0, 60000).Draw(rt, "renderTime")
		cfg := ports.MapReader{domain.KeyRenderTime: ms}
		if rapid.Bool().Draw(rt, "emptySelector") {
			cfg[domain.KeyWaitForSelector] = ""
		}

		wait, err := NewResolver(cfg, nil).ResolveWaitStrategy(context.Background())
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		want := domain.WaitFor(time.Duration(ms) * time.Millisecond)
		if wait != want {
			rt.Fatalf("expected %s, got %s", want, wait)
		}
	})
}

func TestResolver_BlankSelectorStillWins(t *testing.T) {
	cfg := ports.MapReader{domain.KeyWaitForSelector: " ", domain.KeyRenderTime: 500}

	wait, err := NewResolver(cfg, nil).ResolveWaitStrategy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.WaitForSelector(" "), wait)
}

func TestResolver_NoWaitKeys(t *testing.T) {
	for name, cfg := range map[string]ports.MapReader{
		"empty":              {},
		"empty selector":     {domain.KeyWaitForSelector: ""},
		"string render time": {domain.KeyRenderTime: "500"},
		"nil values":         {domain.KeyWaitForSelector: nil, domain.KeyRenderTime: nil},
	} {
		t.Run(name, func(t *testing.T) {
			wait, err := NewResolver(cfg, nil).ResolveWaitStrategy(context.Background())
			require.NoError(t, err)
			assert.Equal(t, domain.NoWait(), wait)
		})
	}
}

func TestResolver_FullClip(t *testing.T) {
	cfg := ports.MapReader{
		domain.KeyFilename:   "/tmp/out.png",
		domain.KeyClipLeft:   10,
		domain.KeyClipTop:    json.Number("20"),
		domain.KeyClipWidth:  300.5,
		domain.KeyClipHeight: int64(200),
	}

	req, err := NewResolver(cfg, nil).ResolveCaptureRequest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out.png", req.TargetPath)
	assert.False(t, req.FullPage)
	require.NotNil(t, req.Clip)
	assert.Equal(t, domain.ClipRegion{X: 10, Y: 20, Width: 300.5, Height: 200}, *req.Clip)
}

func TestResolver_Filename(t *testing.T) {
	tests := []struct {
		name string
		cfg  ports.MapReader
		want string
	}{
		{"absent", ports.MapReader{}, ""},
		{"empty", ports.MapReader{domain.KeyFilename: ""}, ""},
		{"not a string", ports.MapReader{domain.KeyFilename: 42}, ""},
		{"set", ports.MapReader{domain.KeyFilename: "shot.png"}, "shot.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewResolver(tt.cfg, nil).ResolveCaptureRequest(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.TargetPath)
		})
	}
}

func TestResolver_ReaderError(t *testing.T) {
	boom := errors.New("store down")
	reader := ports.ConfigReaderFunc(func(context.Context, string) (any, bool, error) {
		return nil, false, boom
	})
	r := NewResolver(reader, nil)

	_, err := r.ResolveCaptureRequest(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = r.ResolveWaitStrategy(context.Background())
	assert.ErrorIs(t, err, boom)
}
