package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/julianbeese/mietcheck/internal/antidetect"
	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

// PlaywrightRenderer renders pages with Playwright's Chromium
type PlaywrightRenderer struct {
	chromePath string
	headless   bool
	timeout    time.Duration
	settle     time.Duration
	uaRotator  *antidetect.UserAgentRotator
	logger     *slog.Logger
}

// NewPlaywrightRenderer creates a playwright based renderer
func NewPlaywrightRenderer(cfg config.AcquireConfig, uaRotator *antidetect.UserAgentRotator, logger *slog.Logger) *PlaywrightRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if uaRotator == nil {
		uaRotator = antidetect.NewUserAgentRotator(cfg.UserAgents)
	}
	return &PlaywrightRenderer{
		chromePath: cfg.ChromePath,
		headless:   cfg.Headless,
		timeout:    cfg.RenderTimeout,
		settle:     cfg.SettleDelay,
		uaRotator:  uaRotator,
		logger:     logger,
	}
}

// Render starts a driver and browser, loads url and tears both down again
func (r *PlaywrightRenderer) Render(ctx context.Context, url string) (*domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	defer pw.Stop()

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.headless),
		Args:     []string{"--no-sandbox", "--disable-dev-shm-usage"},
	}
	if r.chromePath != "" {
		launch.ExecutablePath = playwright.String(r.chromePath)
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer browser.Close()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(r.uaRotator.Next()),
		Locale:    playwright.String("de-DE"),
	})
	if err != nil {
		return nil, fmt.Errorf("browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	err = page.Route("**/*", func(route playwright.Route) {
		switch route.Request().ResourceType() {
		case "image", "font", "media":
			_ = route.Abort()
		default:
			_ = route.Continue()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("route: %w", err)
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(r.timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("goto %s: %w", url, err)
	}

	page.WaitForTimeout(float64(r.settle.Milliseconds()))

	text, err := page.InnerText("body")
	if err != nil {
		return nil, fmt.Errorf("inner text: %w", err)
	}
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	text = textparse.NormalizeWhitespace(text)
	r.logger.Debug("rendered page", "url", url, "engine", "playwright", "text_len", len(text))
	return &domain.Page{
		URL:      url,
		HTML:     html,
		Text:     text,
		Strategy: domain.StrategyRender,
	}, nil
}
