package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/julianbeese/mietcheck/internal/domain"
)

// Chain escalates from the lightweight fetch to a headless render. Page text
// is returned to the caller and never cached.
type Chain struct {
	fetcher        Fetcher
	renderer       Renderer
	minHTTPChars   int
	minRenderChars int
	logger         *slog.Logger
}

// NewChain creates a chain. renderer may be nil, which disables escalation.
func NewChain(fetcher Fetcher, renderer Renderer, minHTTPChars, minRenderChars int, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		fetcher:        fetcher,
		renderer:       renderer,
		minHTTPChars:   minHTTPChars,
		minRenderChars: minRenderChars,
		logger:         logger,
	}
}

// Acquire returns the first page whose text clears its strategy's threshold:
// the lightweight fetch needs more than minHTTPChars, the render more than
// minRenderChars. Returns domain.ErrNoText when both fall short.
func (c *Chain) Acquire(ctx context.Context, url string) (*domain.Page, error) {
	if page, err := c.tryFetch(ctx, url, c.minHTTPChars); err == nil {
		return page, nil
	} else if errors.Is(err, domain.ErrInvalidInput) || ctx.Err() != nil {
		return nil, err
	}

	if page, err := c.tryRender(ctx, url, c.minRenderChars); err == nil {
		return page, nil
	}

	return nil, fmt.Errorf("acquire %s: %w", url, domain.ErrNoText)
}

// AcquireRendered renders first because structured portals only expose
// their fields after client-side rendering. Falls back to the lightweight
// fetch when no renderer is available or rendering fails.
func (c *Chain) AcquireRendered(ctx context.Context, url string) (*domain.Page, error) {
	if page, err := c.tryRender(ctx, url, c.minRenderChars); err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if page, err := c.tryFetch(ctx, url, c.minRenderChars); err == nil {
		return page, nil
	} else if errors.Is(err, domain.ErrInvalidInput) {
		return nil, err
	}
	return nil, fmt.Errorf("acquire rendered %s: %w", url, domain.ErrNoText)
}

// AcquireText is Acquire reduced to the visible text
func (c *Chain) AcquireText(ctx context.Context, url string) (string, bool) {
	page, err := c.Acquire(ctx, url)
	if err != nil {
		return "", false
	}
	return page.Text, true
}

// FetchText runs only the lightweight strategy with its usual threshold
func (c *Chain) FetchText(ctx context.Context, url string) (string, bool) {
	page, err := c.tryFetch(ctx, url, c.minHTTPChars)
	if err != nil {
		return "", false
	}
	return page.Text, true
}

// RenderText runs only the render strategy with its usual threshold
func (c *Chain) RenderText(ctx context.Context, url string) (string, bool) {
	page, err := c.tryRender(ctx, url, c.minRenderChars)
	if err != nil {
		return "", false
	}
	return page.Text, true
}

func (c *Chain) tryFetch(ctx context.Context, url string, minChars int) (*domain.Page, error) {
	if c.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	page, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		c.logger.Debug("lightweight fetch failed", "url", url, "error", err)
		return nil, err
	}
	if n := utf8.RuneCountInString(page.Text); n <= minChars {
		c.logger.Debug("lightweight text too short", "url", url, "chars", n, "min", minChars)
		return nil, domain.ErrTextTooShort
	}
	return page, nil
}

func (c *Chain) tryRender(ctx context.Context, url string, minChars int) (*domain.Page, error) {
	if c.renderer == nil {
		return nil, errors.New("no renderer configured")
	}
	page, err := c.renderer.Render(ctx, url)
	if err != nil {
		c.logger.Warn("render failed", "url", url, "error", err)
		return nil, err
	}
	if n := utf8.RuneCountInString(page.Text); n <= minChars {
		c.logger.Debug("rendered text too short", "url", url, "chars", n, "min", minChars)
		return nil, domain.ErrTextTooShort
	}
	return page, nil
}
