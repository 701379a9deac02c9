package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/shutter/internal/logging"
	"github.com/aretw0/shutter/pkg/domain"
	"github.com/aretw0/shutter/pkg/ports"
)

// clipKeys maps the clip configuration keys onto ClipRegion fields.
var clipKeys = []struct {
	key string
	set func(*domain.ClipRegion, float64)
}{
	{domain.KeyClipLeft, func(c *domain.ClipRegion, v float64) { c.X = v }},
	{domain.KeyClipTop, func(c *domain.ClipRegion, v float64) { c.Y = v }},
	{domain.KeyClipHeight, func(c *domain.ClipRegion, v float64) { c.Height = v }},
	{domain.KeyClipWidth, func(c *domain.ClipRegion, v float64) { c.Width = v }},
}

// Resolver builds capture parameters from a configuration snapshot.
// It only reads; results are never cached.
type Resolver struct {
	reader ports.ConfigReader
	logger *slog.Logger
}

// NewResolver creates a Resolver over reader. A nil logger discards output.
func NewResolver(reader ports.ConfigReader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{reader: reader, logger: logger}
}

// ResolveCaptureRequest reads filename, fullPage and the clip keys.
//
// TargetPath is left empty when filename is absent; validating it is the
// sequencer's job. The clip region is only resolved when FullPage is false and
// is attached only when all four clip keys are numeric.
func (r *Resolver) ResolveCaptureRequest(ctx context.Context) (domain.CaptureRequest, error) {
	var req domain.CaptureRequest

	filename, ok, err := r.reader.Get(ctx, domain.KeyFilename)
	if err != nil {
		return req, fmt.Errorf("read %s: %w", domain.KeyFilename, err)
	}
	if s, isString := domain.String(filename); ok && isString && s != "" {
		req.TargetPath = s
	}

	fullPage, ok, err := r.reader.Get(ctx, domain.KeyFullPage)
	if err != nil {
		return req, fmt.Errorf("read %s: %w", domain.KeyFullPage, err)
	}
	req.FullPage = ok && domain.Truthy(fullPage)
	if req.FullPage {
		return req, nil
	}

	clip, err := r.resolveClip(ctx)
	if err != nil {
		return req, err
	}
	req.Clip = clip
	return req, nil
}

func (r *Resolver) resolveClip(ctx context.Context) (*domain.ClipRegion, error) {
	var (
		clip    domain.ClipRegion
		missing []string
	)
	for _, ck := range clipKeys {
		v, ok, err := r.reader.Get(ctx, ck.key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ck.key, err)
		}
		n, numeric := domain.Number(v)
		if !ok || !numeric {
			missing = append(missing, ck.key)
			continue
		}
		ck.set(&clip, n)
	}

	switch len(missing) {
	case 0:
		return &clip, nil
	case len(clipKeys):
		return nil, nil
	default:
		// Partial clip configuration is discarded rather than rejected.
		r.logger.Debug("Ignoring partial clip region", "missing", strings.Join(missing, ","))
		return nil, nil
	}
}

// ResolveWaitStrategy returns Selector when waitForSelector is a non-empty
// string, FixedDelay when renderTime is numeric, and None otherwise.
func (r *Resolver) ResolveWaitStrategy(ctx context.Context) (domain.WaitStrategy, error) {
	selector, ok, err := r.reader.Get(ctx, domain.KeyWaitForSelector)
	if err != nil {
		return domain.NoWait(), fmt.Errorf("read %s: %w", domain.KeyWaitForSelector, err)
	}
	if s, isString := domain.String(selector); ok && isString && s != "" {
		return domain.WaitForSelector(s), nil
	}

	renderTime, ok, err := r.reader.Get(ctx, domain.KeyRenderTime)
	if err != nil {
		return domain.NoWait(), fmt.Errorf("read %s: %w", domain.KeyRenderTime, err)
	}
	if ms, numeric := domain.Number(renderTime); ok && numeric {
		return domain.WaitForMillis(ms), nil
	}

	return domain.NoWait(), nil
}
