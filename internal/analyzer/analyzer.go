// Package analyzer exposes the two public operations: analyzing a listing
// URL and looking up the market rent for a postal code.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/julianbeese/mietcheck/internal/cache"
	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/merge"
	"github.com/julianbeese/mietcheck/internal/plausibility"
	"github.com/julianbeese/mietcheck/internal/portal"
	"github.com/julianbeese/mietcheck/internal/rent"
)

// Reasons reported for unsuccessful postal code lookups
const (
	ReasonPostalCodeNotFound = "PLZ nicht gefunden"
	ReasonNoBenchmark        = "Kein Mietspiegel gefunden"
)

const defaultBatchLimit = 4

// PageSource acquires listing pages
type PageSource interface {
	Acquire(ctx context.Context, url string) (*domain.Page, error)
	AcquireRendered(ctx context.Context, url string) (*domain.Page, error)
}

// AreaResolver maps a postal code to an area
type AreaResolver interface {
	Resolve(ctx context.Context, postalCode string) domain.AreaDescriptor
}

// BenchmarkResolver finds the market rent for an area
type BenchmarkResolver interface {
	Resolve(ctx context.Context, area domain.AreaDescriptor) *domain.RentBenchmark
}

// History persists results for later inspection
type History interface {
	SaveAnalysis(ctx context.Context, a *domain.AnalysisResult) error
	SaveBenchmark(ctx context.Context, m *domain.MarketRentResult) error
	LogActivity(ctx context.Context, log *domain.ActivityLog) error
}

// Deps are the collaborators of the analyzer. Cache and History are optional.
type Deps struct {
	Pages        PageSource
	Portals      *portal.Registry
	TextRent     *rent.TextExtractor
	ModelRent    *rent.ModelExtractor
	Plausibility *plausibility.Engine
	Areas        AreaResolver
	Benchmarks   BenchmarkResolver
	Cache        cache.Cache
	History      History
}

// Analyzer coordinates acquisition, extraction, merge and market rent lookup
type Analyzer struct {
	deps       Deps
	cacheCfg   config.CacheConfig
	batchLimit int
	logger     *slog.Logger
}

// New creates an analyzer
func New(deps Deps, cacheCfg config.CacheConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	return &Analyzer{
		deps:       deps,
		cacheCfg:   cacheCfg,
		batchLimit: defaultBatchLimit,
		logger:     logger,
	}
}

// ModelEnabled reports whether the language model is consulted
func (a *Analyzer) ModelEnabled() bool {
	return a.deps.ModelRent.Enabled()
}

// AnalyzeURL extracts a merged property record from a listing URL. It only
// fails for an unusable URL or when no page text could be acquired at all;
// every other problem degrades to absent fields. Errors wrap
// domain.ErrExtractionFailed.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) (*domain.AnalysisResult, error) {
	return a.analyzeURL(ctx, rawURL, true)
}

// RefreshURL analyzes the listing again without reading the cache. The fresh
// result replaces the cached one.
func (a *Analyzer) RefreshURL(ctx context.Context, rawURL string) (*domain.AnalysisResult, error) {
	return a.analyzeURL(ctx, rawURL, false)
}

func (a *Analyzer) analyzeURL(ctx context.Context, rawURL string, useCache bool) (*domain.AnalysisResult, error) {
	listingURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	var cached domain.AnalysisResult
	if useCache && a.cacheGet(ctx, cache.URLKey(listingURL), &cached) {
		return &cached, nil
	}

	adapter := a.deps.Portals.Select(listingURL)
	a.logger.Info("analyzing listing", "url", listingURL, "portal", adapter.Name())

	var page *domain.Page
	if adapter.NeedsRender() {
		page, err = a.deps.Pages.AcquireRendered(ctx, listingURL)
	} else {
		page, err = a.deps.Pages.Acquire(ctx, listingURL)
	}
	if err != nil {
		a.logger.Warn("page acquisition failed", "url", listingURL, "error", err)
		a.logActivity(ctx, &domain.ActivityLog{
			Action:     domain.ActionAnalyzeFailed,
			EntityType: "url",
			EntityID:   listingURL,
			ErrorMsg:   err.Error(),
		})
		return nil, fmt.Errorf("%w: Seite konnte nicht geladen werden", domain.ErrExtractionFailed)
	}

	out := a.deps.Portals.Extract(adapter, page)

	// both rent extractors read the complete page text, not the adapter's excerpt
	freeText := a.deps.TextRent.Extract(page.Text)
	modelInput := out
	modelInput.FullText = page.Text
	model := a.deps.ModelRent.Extract(ctx, modelInput, listingURL)

	rec := merge.Merge(out, freeText, model)
	if !a.ModelEnabled() {
		merge.NoteModelDisabled(&rec)
	}
	if check := a.deps.Plausibility.Apply(&rec); !check.Passed {
		a.logger.Debug("implausible values dropped", "url", listingURL, "rejected", check.Rejected)
	}

	result := &domain.AnalysisResult{
		ID:         uuid.NewString(),
		URL:        listingURL,
		Portal:     out.Portal,
		Strategy:   page.Strategy,
		Record:     rec,
		AnalyzedAt: time.Now(),
	}

	a.logger.Info("listing analyzed",
		"id", result.ID,
		"portal", result.Portal,
		"strategy", result.Strategy,
		"rent_source", rec.RentSource)

	if a.deps.History != nil {
		if err := a.deps.History.SaveAnalysis(ctx, result); err != nil {
			a.logger.Warn("analysis save failed", "id", result.ID, "error", err)
		}
	}
	a.logActivity(ctx, &domain.ActivityLog{
		Action:     domain.ActionAnalyze,
		EntityType: "analysis",
		EntityID:   result.ID,
		Details:    listingURL,
	})
	a.cacheSet(ctx, cache.URLKey(listingURL), result, a.cacheCfg.AnalysisTTL)

	return result, nil
}

// MarketRent resolves the area of a postal code and its rent benchmark.
// Failures are reported through Found and Reason, never as an error.
func (a *Analyzer) MarketRent(ctx context.Context, postalCode string) domain.MarketRentResult {
	return a.marketRent(ctx, postalCode, true)
}

// RefreshMarketRent looks the benchmark up again without reading the cache.
// The watch uses it so every cycle sees the current figures.
func (a *Analyzer) RefreshMarketRent(ctx context.Context, postalCode string) domain.MarketRentResult {
	return a.marketRent(ctx, postalCode, false)
}

func (a *Analyzer) marketRent(ctx context.Context, postalCode string, useCache bool) domain.MarketRentResult {
	plz := strings.TrimSpace(postalCode)

	var cached domain.MarketRentResult
	if useCache && a.cacheGet(ctx, cache.PostalCodeKey(plz), &cached) {
		return cached
	}

	area := a.deps.Areas.Resolve(ctx, plz)
	if !area.Found() {
		a.logActivity(ctx, &domain.ActivityLog{
			Action:     domain.ActionMarketRentEmpty,
			EntityType: "postal_code",
			EntityID:   plz,
			Details:    ReasonPostalCodeNotFound,
		})
		return domain.MarketRentResult{PostalCode: plz, Reason: ReasonPostalCodeNotFound}
	}

	bench := a.deps.Benchmarks.Resolve(ctx, area)
	if bench == nil {
		a.logActivity(ctx, &domain.ActivityLog{
			Action:     domain.ActionMarketRentEmpty,
			EntityType: "postal_code",
			EntityID:   plz,
			Details:    ReasonNoBenchmark,
		})
		return domain.MarketRentResult{PostalCode: plz, Reason: ReasonNoBenchmark, Area: &area}
	}

	result := domain.MarketRentResult{
		PostalCode: plz,
		Found:      true,
		Area:       &area,
		Benchmark:  bench,
	}

	if a.deps.History != nil {
		if err := a.deps.History.SaveBenchmark(ctx, &result); err != nil {
			a.logger.Warn("benchmark save failed", "postal_code", plz, "error", err)
		}
	}
	a.logActivity(ctx, &domain.ActivityLog{
		Action:     domain.ActionMarketRent,
		EntityType: "postal_code",
		EntityID:   plz,
		Details:    bench.SourceURL,
	})
	a.cacheSet(ctx, cache.PostalCodeKey(plz), result, a.cacheCfg.MarketRentTTL)

	return result
}

// MarketRentBatch looks up several postal codes concurrently. Results keep
// the order of the input.
func (a *Analyzer) MarketRentBatch(ctx context.Context, postalCodes []string) []domain.MarketRentResult {
	results := make([]domain.MarketRentResult, len(postalCodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.batchLimit)
	for i, plz := range postalCodes {
		g.Go(func() error {
			results[i] = a.MarketRent(gctx, plz)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (a *Analyzer) cacheGet(ctx context.Context, key string, dst any) bool {
	err := a.deps.Cache.Get(ctx, key, dst)
	if err == nil {
		a.logger.Debug("cache hit", "key", key)
		return true
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		a.logger.Warn("cache read failed", "key", key, "error", err)
	}
	return false
}

func (a *Analyzer) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := a.deps.Cache.Set(ctx, key, value, ttl); err != nil {
		a.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (a *Analyzer) logActivity(ctx context.Context, entry *domain.ActivityLog) {
	if a.deps.History == nil {
		return
	}
	if err := a.deps.History.LogActivity(ctx, entry); err != nil {
		a.logger.Debug("activity log failed", "action", entry.Action, "error", err)
	}
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("URL fehlt")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("ungültige URL %q", raw)
	}
	return u.String(), nil
}
