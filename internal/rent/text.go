// Package rent extracts cold rent figures from listing text, either with a
// cascade of regex rules or by asking a language model.
package rent

import (
	"math"
	"regexp"

	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/plausibility"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

// Kind says whether a rule captures a monthly or an annual figure
type Kind int

const (
	KindAnnual Kind = iota
	KindMonthly
)

const (
	amountPattern   = `(\d{1,3}(?:[.\s]\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?)`
	currencyPattern = `\s*(?:€|euro?)`

	perAreaWindow  = 40
	hausgeldBefore = 40
	hausgeldAfter  = 60
)

var (
	perAreaRe  = regexp.MustCompile(`(?i)m²|m2|qm`)
	hausgeldRe = regexp.MustCompile(`(?i)hausgeld`)
)

// Rule is one step of the free-text cascade. Reject can veto an individual
// match; loc is the submatch index slice of that match.
type Rule struct {
	Name    string
	Source  domain.RentSource
	Kind    Kind
	Pattern *regexp.Regexp
	Reject  func(text string, loc []int) bool
}

// DefaultRules returns the cascade in priority order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "annual",
			Source: domain.RentSourceTextAnnual,
			Kind:   KindAnnual,
			Pattern: regexp.MustCompile(`(?i)(?:jahres(?:netto)?kaltmiete|jahresmiete|(?:soll|ist)[-\s]?mieteinnahmen|mieteinnahmen)` +
				`(?:\s*(?:p\.?\s*a\.?|pro\s*jahr))?\s*[:\-]?\s*` + amountPattern + currencyPattern),
		},
		{
			Name:   "kalt",
			Source: domain.RentSourceTextKalt,
			Kind:   KindMonthly,
			Pattern: regexp.MustCompile(`(?i)(?:\bnkm|\bkaltmiete|\bnetto[-\s]?kaltmiete|\bmiete\s*kalt)\b[^\n:\d]{0,20}[:\-]?\s*` +
				amountPattern + currencyPattern),
			Reject: perAreaFollows,
		},
		{
			Name:   "monthly-generic",
			Source: domain.RentSourceTextMonthlyGen,
			Kind:   KindMonthly,
			Pattern: regexp.MustCompile(`(?i)` + amountPattern + currencyPattern +
				`\s*(?:/|pro)?\s*(?:monatlich|monat|mtl\.?|p\.?\s*m\.?|m\b)`),
			Reject: func(text string, loc []int) bool {
				return perAreaFollows(text, loc) || hausgeldNearby(text, loc)
			},
		},
	}
}

// perAreaFollows rejects amounts that turn out to be a price per square meter
func perAreaFollows(text string, loc []int) bool {
	end := min(len(text), loc[1]+perAreaWindow)
	return perAreaRe.MatchString(text[loc[3]:end])
}

// hausgeldNearby rejects amounts that sit next to the co-ownership charge
func hausgeldNearby(text string, loc []int) bool {
	start := max(0, loc[0]-hausgeldBefore)
	end := min(len(text), loc[0]+hausgeldAfter)
	return hausgeldRe.MatchString(text[start:end])
}

// TextExtractor runs the rule cascade over page text
type TextExtractor struct {
	rules  []Rule
	policy *plausibility.Policy
}

// NewTextExtractor creates an extractor with the default rules
func NewTextExtractor(policy *plausibility.Policy) *TextExtractor {
	return &TextExtractor{rules: DefaultRules(), policy: policy}
}

// Extract applies the rules in order until a monthly figure is found.
// The source tag and snippet belong to the rule that set the monthly figure;
// the annual rule keeps them only when monthly is derived from it. Returns
// nil when no rule produced a plausible figure.
func (e *TextExtractor) Extract(text string) *domain.RentExtraction {
	if text == "" {
		return nil
	}
	t := textparse.NormalizeWhitespace(text)

	var res domain.RentExtraction
	var annualSource domain.RentSource
	var annualSnippet string
	for _, rule := range e.rules {
		if rule.Kind == KindAnnual && res.Annual != nil {
			continue
		}

		v, snippet := e.first(rule, t)
		if v == nil {
			continue
		}
		if rule.Kind == KindAnnual {
			res.Annual = v
			annualSource, annualSnippet = rule.Source, snippet
			continue
		}
		res.Monthly = v
		res.Source = rule.Source
		res.ContextSnippet = snippet
		break
	}

	if res.Monthly == nil && res.Annual != nil {
		m := math.Round(*res.Annual / 12)
		res.Monthly = &m
		res.Source = annualSource
		res.ContextSnippet = annualSnippet
	}
	if res.Empty() {
		return nil
	}
	return &res
}

// first returns the first match of rule that is neither vetoed nor implausible
func (e *TextExtractor) first(rule Rule, text string) (*float64, string) {
	for _, loc := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
		if rule.Reject != nil && rule.Reject(text, loc) {
			continue
		}
		v := textparse.ParseEuroAmount(text[loc[2]:loc[3]])
		if v == nil || !e.plausible(rule.Kind, *v) {
			continue
		}
		return v, text[loc[0]:loc[1]]
	}
	return nil, ""
}

func (e *TextExtractor) plausible(kind Kind, v float64) bool {
	if e.policy == nil {
		return true
	}
	if kind == KindAnnual {
		return e.policy.AnnualOK(v)
	}
	return e.policy.MonthlyOK(v)
}
