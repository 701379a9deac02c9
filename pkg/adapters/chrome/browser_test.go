package chrome

import (
	"context"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// launchOrSkip starts a real Chrome. Set SHUTTER_CHROME_TESTS=1 to run these.
func launchOrSkip(t *testing.T) ports.Browser {
	t.Helper()
	if os.Getenv("SHUTTER_CHROME_TESTS") == "" {
		t.Skip("set SHUTTER_CHROME_TESTS=1 to run tests against a local Chrome")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	browser, err := NewLauncher(Config{
		Headless:          true,
		Args:              []string{"--no-sandbox"},
		NavigationTimeout: 10 * time.Second,
		WaitTimeout:       2 * time.Second,
	}).Launch(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = browser.Close(context.Background()) })
	return browser
}

func testSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body style="height:3000px">
<div id="box" style="width:100px;height:100px;background:red"></div>
<script>setTimeout(function(){var d=document.createElement("p");d.id="late";document.body.appendChild(d)},200)</script>
</body></html>`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBrowser_CaptureModes(t *testing.T) {
	browser := launchOrSkip(t)
	srv := testSite(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		req        domain.CaptureRequest
		wantWidth  int
		wantHeight int
	}{
		{"viewport", domain.CaptureRequest{}, DefaultViewportWidth, DefaultViewportHeight},
		{"clip", domain.CaptureRequest{Clip: &domain.ClipRegion{X: 0, Y: 0, Width: 50, Height: 40}}, 50, 40},
		{"full page", domain.CaptureRequest{FullPage: true}, 0, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := browser.NewPage(ctx)
			require.NoError(t, err)
			defer page.Close()

			require.NoError(t, page.Navigate(ctx, srv.URL))
			require.NoError(t, page.WaitForSelector(ctx, "#late"))

			tt.req.TargetPath = filepath.Join(t.TempDir(), "shot.png")
			data, err := page.Capture(ctx, tt.req)
			require.NoError(t, err)

			f, err := os.Open(tt.req.TargetPath)
			require.NoError(t, err)
			defer f.Close()
			img, err := png.Decode(f)
			require.NoError(t, err)
			assert.NotEmpty(t, data)

			if tt.wantWidth > 0 {
				assert.Equal(t, tt.wantWidth, img.Bounds().Dx())
			}
			assert.GreaterOrEqual(t, img.Bounds().Dy(), tt.wantHeight)
		})
	}
}

func TestBrowser_NavigationErrors(t *testing.T) {
	browser := launchOrSkip(t)
	srv := testSite(t)
	ctx := context.Background()

	page, err := browser.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	err = page.Navigate(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")

	err = page.Navigate(ctx, "http://does-not-exist.invalid/")
	assert.Error(t, err)
}

func TestBrowser_SelectorTimeout(t *testing.T) {
	browser := launchOrSkip(t)
	srv := testSite(t)
	ctx := context.Background()

	page, err := browser.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, srv.URL))
	err = page.WaitForSelector(ctx, "#never")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
