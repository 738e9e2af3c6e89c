package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/julianbeese/mietcheck/internal/antidetect"
	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

// ChromeRenderer renders pages with a fresh headless Chrome per call
type ChromeRenderer struct {
	chromePath string
	headless   bool
	timeout    time.Duration
	settle     time.Duration
	uaRotator  *antidetect.UserAgentRotator
	logger     *slog.Logger
}

// NewChromeRenderer creates a chromedp based renderer
func NewChromeRenderer(cfg config.AcquireConfig, uaRotator *antidetect.UserAgentRotator, logger *slog.Logger) *ChromeRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if uaRotator == nil {
		uaRotator = antidetect.NewUserAgentRotator(cfg.UserAgents)
	}
	return &ChromeRenderer{
		chromePath: cfg.ChromePath,
		headless:   cfg.Headless,
		timeout:    cfg.RenderTimeout,
		settle:     cfg.SettleDelay,
		uaRotator:  uaRotator,
		logger:     logger,
	}
}

// Render navigates to url, waits for DOMContentLoaded plus the settle delay
// and reads the body's innerText and the document HTML.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (*domain.Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(r.uaRotator.Next()),
	)

	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(browserCtx)
			execCtx := cdp.WithExecutor(browserCtx, c.Target)
			var err error
			if blockedResource(paused.ResourceType) {
				err = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			} else {
				err = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
			}
			if err != nil && browserCtx.Err() == nil {
				r.logger.Debug("request interception failed", "url", paused.Request.URL, "error", err)
			}
		}()
	})

	var text, html string
	err := chromedp.Run(browserCtx,
		fetch.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	text = textparse.NormalizeWhitespace(text)
	r.logger.Debug("rendered page", "url", url, "engine", "chromedp", "text_len", len(text))
	return &domain.Page{
		URL:      url,
		HTML:     html,
		Text:     text,
		Strategy: domain.StrategyRender,
	}, nil
}

func blockedResource(t network.ResourceType) bool {
	switch t {
	case network.ResourceTypeImage, network.ResourceTypeFont, network.ResourceTypeMedia:
		return true
	}
	return false
}
