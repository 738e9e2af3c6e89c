package acquire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/julianbeese/mietcheck/internal/antidetect"
	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
)

// Renderer loads a URL in a headless browser and returns the rendered page.
// Implementations must release the browser on every return path.
type Renderer interface {
	Render(ctx context.Context, url string) (*domain.Page, error)
}

// Fetcher is the lightweight acquisition strategy
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Page, error)
}

// NewRenderer builds the renderer selected by cfg.Engine
func NewRenderer(cfg config.AcquireConfig, uaRotator *antidetect.UserAgentRotator, logger *slog.Logger) (Renderer, error) {
	switch cfg.Engine {
	case "", "chromedp":
		return NewChromeRenderer(cfg, uaRotator, logger), nil
	case "playwright":
		return NewPlaywrightRenderer(cfg, uaRotator, logger), nil
	default:
		return nil, fmt.Errorf("unknown renderer engine %q", cfg.Engine)
	}
}
