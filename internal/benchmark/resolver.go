package benchmark

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

const providerIS24 = "immobilienscout24"

// TextSource is the slice of the acquisition chain the resolver needs
type TextSource interface {
	// AcquireText escalates from the lightweight fetch to a render
	AcquireText(ctx context.Context, url string) (string, bool)
	FetchText(ctx context.Context, url string) (string, bool)
	RenderText(ctx context.Context, url string) (string, bool)
}

// Resolver probes the primary provider and then the generic ones
type Resolver struct {
	source    TextSource
	baseURL   string
	providers []string
	bounds    textparse.Bounds
	logger    *slog.Logger
}

// NewResolver creates a benchmark resolver
func NewResolver(cfg config.BenchmarkConfig, policy config.PolicyConfig, source TextSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		source:    source,
		baseURL:   cfg.PrimaryBaseURL,
		providers: cfg.Providers,
		bounds:    BoundsFromPolicy(policy),
		logger:    logger,
	}
}

// BoundsFromPolicy maps the configured policy onto range parser bounds
func BoundsFromPolicy(p config.PolicyConfig) textparse.Bounds {
	return textparse.Bounds{
		ExplicitMin: p.ExplicitRangeMin,
		ExplicitMax: p.ExplicitRangeMax,
		ScanMin:     p.ScannedValueMin,
		ScanMax:     p.ScannedValueMax,
		Band:        p.SingleValueBand,
		Window:      p.ContextWindow,
	}
}

// Resolve returns the first benchmark any candidate yields, or nil
func (r *Resolver) Resolve(ctx context.Context, area domain.AreaDescriptor) *domain.RentBenchmark {
	if !area.Found() {
		return nil
	}
	if b := r.resolvePrimary(ctx, area); b != nil {
		return b
	}
	return r.resolveGeneric(ctx, area)
}

func (r *Resolver) resolvePrimary(ctx context.Context, area domain.AreaDescriptor) *domain.RentBenchmark {
	for _, c := range IS24Candidates(r.baseURL, area) {
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Debug("trying benchmark candidate", "label", c.Label, "url", c.URL)

		text, ok := r.source.AcquireText(ctx, c.URL)
		if !ok {
			r.logger.Debug("no text for candidate", "label", c.Label)
			continue
		}
		stats := ParseIS24Mietspiegel(text)
		if stats == nil {
			r.logger.Debug("no range on candidate", "label", c.Label)
			continue
		}

		r.logger.Info("benchmark found", "provider", providerIS24, "url", c.URL, "scope", c.Scope)
		return &domain.RentBenchmark{
			SourceURL: c.URL,
			Provider:  providerIS24,
			RangeLow:  stats.Low,
			RangeHigh: stats.High,
			Average:   stats.Avg,
			Scope:     c.Scope,
		}
	}
	return nil
}

// GenericCandidates expands the provider templates for a city
func GenericCandidates(templates []string, city string) []Candidate {
	slug := Slug(NormalizeCityForSearch(city))
	if slug == "" {
		return nil
	}
	out := make([]Candidate, 0, len(templates))
	for _, tpl := range templates {
		u := strings.ReplaceAll(tpl, "{slug}", slug)
		out = append(out, Candidate{Label: providerLabel(u), URL: u, Scope: domain.ScopeCity})
	}
	return out
}

func (r *Resolver) resolveGeneric(ctx context.Context, area domain.AreaDescriptor) *domain.RentBenchmark {
	for _, c := range GenericCandidates(r.providers, area.City) {
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Debug("trying generic provider", "label", c.Label, "url", c.URL)

		rng := r.parseFrom(ctx, r.source.FetchText, c.URL)
		if rng == nil {
			rng = r.parseFrom(ctx, r.source.RenderText, c.URL)
		}
		if rng == nil {
			r.logger.Debug("no range on provider", "label", c.Label)
			continue
		}

		r.logger.Info("benchmark found", "provider", c.Label, "url", c.URL, "scope", c.Scope)
		return &domain.RentBenchmark{
			SourceURL: c.URL,
			Provider:  c.Label,
			RangeLow:  domain.Ptr(rng.Low),
			RangeHigh: domain.Ptr(rng.High),
			Average:   midpoint(rng.Low, rng.High),
			Scope:     c.Scope,
		}
	}
	return nil
}

func (r *Resolver) parseFrom(ctx context.Context, get func(context.Context, string) (string, bool), u string) *textparse.Range {
	text, ok := get(ctx, u)
	if !ok {
		return nil
	}
	return textparse.ParseEuroPerAreaRange(text, r.bounds)
}

func providerLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
