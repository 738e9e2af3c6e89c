package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/julianbeese/mietcheck/internal/antidetect"
	"github.com/julianbeese/mietcheck/internal/domain"
)

const maxBodyBytes = 8 << 20

// HTTPFetcher is the lightweight strategy: one GET with browser-like headers
type HTTPFetcher struct {
	httpClient *http.Client
	throttle   *antidetect.HostThrottle
	uaRotator  *antidetect.UserAgentRotator
	logger     *slog.Logger
}

// NewHTTPFetcher creates a fetcher. throttle may be nil.
func NewHTTPFetcher(timeout time.Duration, throttle *antidetect.HostThrottle, uaRotator *antidetect.UserAgentRotator, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if uaRotator == nil {
		uaRotator = antidetect.NewUserAgentRotator(nil)
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		throttle:   throttle,
		uaRotator:  uaRotator,
		logger:     logger,
	}
}

// Fetch downloads rawURL and strips it to visible text
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*domain.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, domain.ErrInvalidInput)
	}

	if f.throttle != nil {
		if err := f.throttle.Wait(ctx, u.Host); err != nil {
			return nil, err
		}
	}

	body, err := f.fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	text, err := HTMLToText(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", rawURL, err)
	}

	f.logger.Debug("fetched page", "url", rawURL, "bytes", len(body), "text_len", len(text))
	return &domain.Page{
		URL:      rawURL,
		HTML:     string(body),
		Text:     text,
		Strategy: domain.StrategyHTTP,
	}, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	// Set headers to appear as a real browser
	f.setHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited (429)")
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("forbidden (403) - possible bot detection")
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	// the transport asked for gzip itself and hands back the decoded body
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func (f *HTTPFetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.uaRotator.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	// Don't set Accept-Encoding - Go handles gzip automatically when not set
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
