package rent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/llm"
	"github.com/julianbeese/mietcheck/internal/plausibility"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

const modelSystemPrompt = "Du bist ein Extraktionsspezialist. Extrahiere NUR Mietangaben (Kaltmiete), keine Kaufpreise."

var fenceRe = regexp.MustCompile("(?i)^```(?:json)?\\s*|```$")

// ModelExtractor asks a language model for the cold rent of a listing
type ModelExtractor struct {
	completer llm.Completer
	cfg       config.OpenAIConfig
	policy    *plausibility.Policy
	logger    *slog.Logger
}

// NewModelExtractor creates the extractor. A nil or disabled completer makes
// Extract return nil.
func NewModelExtractor(completer llm.Completer, cfg config.OpenAIConfig, policy *plausibility.Policy, logger *slog.Logger) *ModelExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = plausibility.NewPolicy(config.DefaultPolicy())
	}
	return &ModelExtractor{
		completer: completer,
		cfg:       cfg,
		policy:    policy,
		logger:    logger,
	}
}

// Enabled reports whether the model will be consulted
func (e *ModelExtractor) Enabled() bool {
	return e != nil && e.completer != nil && e.completer.Enabled()
}

// Extract returns the validated model answer or nil. Nil means no opinion,
// never zero rent.
func (e *ModelExtractor) Extract(ctx context.Context, out domain.AdapterOutput, url string) *domain.RentExtraction {
	if !e.Enabled() {
		return nil
	}

	raw, err := e.completer.Complete(ctx, modelSystemPrompt, e.buildPrompt(out, url), llm.Options{
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrModelDisabled) {
			e.logger.Warn("model rent extraction failed", "url", url, "error", err)
		}
		return nil
	}

	ans, err := parseAnswer(raw)
	if err != nil {
		e.logger.Debug("model answer unparseable", "url", url, "error", err)
		return nil
	}

	res := e.validate(ans)
	if res == nil {
		e.logger.Debug("model answer implausible", "url", url)
	}
	return res
}

func (e *ModelExtractor) buildPrompt(out domain.AdapterOutput, url string) string {
	rec := out.Record

	var attrs []string
	if rec.Address != nil {
		attrs = append(attrs, "Adresse: "+*rec.Address)
	}
	if rec.Rooms != nil {
		attrs = append(attrs, fmt.Sprintf("Zimmer: %g", *rec.Rooms))
	}
	if rec.LivingSpaceSqm != nil {
		attrs = append(attrs, fmt.Sprintf("Wohnfläche: %g m²", *rec.LivingSpaceSqm))
	}
	if rec.YearBuilt != nil {
		attrs = append(attrs, fmt.Sprintf("Baujahr: %d", *rec.YearBuilt))
	}

	var title, desc string
	if rec.Title != nil {
		title = *rec.Title
	}
	if rec.Description != nil {
		desc = textparse.Truncate(*rec.Description, e.cfg.MaxDescriptionChars)
	}

	return fmt.Sprintf(`Lies das folgende deutsche Immobilien-Inserat und gib nur die Mietangaben zurück.

Regeln:
- Gesucht ist die Netto-Kaltmiete pro Monat ("Kaltmiete", "Nettokaltmiete", "Miete kalt", "Mieteinnahmen monatlich").
- Steht nur eine Jahresmiete (p.a.) im Text, gib sie als rent_annual_cold an.
- Ignoriere Kaufpreise, Preise pro m², Warmmiete, Nebenkosten und Hausgeld.
- Bei mehreren Werten nimm den eindeutigsten.
- Antworte ausschließlich mit einem JSON-Objekt, ohne Code-Fences und ohne Kommentar.

Schema:
{"rent_monthly_cold": number|null, "rent_annual_cold": number|null, "confidence": number, "source": "monthly|annual|both|null", "context_snippet": string}

URL: %s
Titel: %s
%s

Beschreibung:
%s

Volltext:
%s`,
		url,
		title,
		strings.Join(attrs, "\n"),
		desc,
		textparse.Truncate(out.FullText, e.cfg.MaxPageChars),
	)
}

// validate applies the monthly/annual bounds and derives monthly from annual
// when only the latter is believable
func (e *ModelExtractor) validate(ans *modelAnswer) *domain.RentExtraction {
	monthly := numberOf(ans.Monthly)
	annual := numberOf(ans.Annual)

	if (monthly == nil || !e.policy.MonthlyOK(*monthly)) && annual != nil && e.policy.AnnualOK(*annual) {
		if m := math.Round(*annual / 12); e.policy.MonthlyOK(m) {
			monthly = &m
		}
	}
	if monthly != nil && !e.policy.MonthlyOK(*monthly) {
		monthly = nil
	}
	if annual != nil && !e.policy.AnnualOK(*annual) {
		annual = nil
	}
	if annual == nil && monthly != nil {
		annual = domain.Ptr(*monthly * 12)
	}
	if monthly == nil && annual == nil {
		return nil
	}

	res := &domain.RentExtraction{
		Monthly: monthly,
		Annual:  annual,
		Source:  domain.RentSourceLLM,
	}
	if c, ok := ans.Confidence.(float64); ok {
		res.Confidence = domain.Ptr(math.Min(1, math.Max(0, c)))
	}
	if s, ok := ans.ContextSnippet.(string); ok {
		res.ContextSnippet = s
	}
	return res
}

type modelAnswer struct {
	Monthly        any `json:"rent_monthly_cold"`
	Annual         any `json:"rent_annual_cold"`
	Confidence     any `json:"confidence"`
	Source         any `json:"source"`
	ContextSnippet any `json:"context_snippet"`
}

// parseAnswer strips code fences and decodes the JSON object. When the text
// around it is not pure JSON, the first balanced {...} block is tried.
func parseAnswer(raw string) (*modelAnswer, error) {
	text := strings.TrimSpace(fenceRe.ReplaceAllString(strings.TrimSpace(raw), ""))

	var ans modelAnswer
	if err := json.Unmarshal([]byte(text), &ans); err == nil {
		return &ans, nil
	}

	obj, ok := firstObject(text)
	if !ok {
		return nil, domain.ErrUnparseable
	}
	if err := json.Unmarshal([]byte(obj), &ans); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnparseable, err)
	}
	return &ans, nil
}

func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// numberOf accepts JSON numbers and German formatted strings
func numberOf(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		return textparse.ParseGermanNumber(n)
	}
	return nil
}
