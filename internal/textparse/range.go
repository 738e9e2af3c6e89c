package textparse

import (
	"math"
	"regexp"
	"strings"
)

const (
	perSqmNum = `(\d{1,2}(?:[.,]\d{1,2})?)`
	// keeps the tail of a larger figure like 3.215 from matching
	numLeft = `(?:^|[^\d.,])`
)

var (
	explicitRangeRe = regexp.MustCompile(`von\s+` + perSqmNum + `\s*(?:€|eur|euro)[^0-9]{0,30}bis\s+` + perSqmNum +
		`\s*(?:€|eur|euro)[^0-9]{0,20}(?:/|\bpro\b)?\s*(?:m²|m2|qm|quadratmeter)`)
	perSqmRe = regexp.MustCompile(numLeft + perSqmNum + `\s*(?:€|eur|euro)\s*(?:/|\bpro\b)?\s*(?:m²|m2|qm|quadratmeter)`)

	rentalLexiconRe   = regexp.MustCompile(`(miet|miete|kaltmiete|nettokaltmiete|mietspiegel|mietpreis)`)
	purchaseLexiconRe = regexp.MustCompile(`(kauf|kaufpreis|kaufen|verkauf|eigentum|kaufpreise|preis/m²\s*kauf)`)
)

// Range is a rent range in EUR per square meter
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Bounds are the plausibility limits applied while scanning
type Bounds struct {
	ExplicitMin float64 // explicit "von X bis Y" phrase
	ExplicitMax float64
	ScanMin     float64 // single scanned values
	ScanMax     float64
	Band        float64 // relative band around a lone value
	Window      int     // context characters on each side
}

// DefaultBounds returns the limits tuned for German residential rents
func DefaultBounds() Bounds {
	return Bounds{
		ExplicitMin: 3,
		ExplicitMax: 40,
		ScanMin:     3,
		ScanMax:     25,
		Band:        0.15,
		Window:      80,
	}
}

// ParseEuroPerAreaRange finds a rent-per-square-meter range in page text.
// An explicit "von X € bis Y €/m²" phrase wins. Otherwise every "X €/m²"
// figure is collected, first only where rental terms and no purchase terms
// surround it, then without the lexical filter. Returns nil when nothing fits.
func ParseEuroPerAreaRange(text string, b Bounds) *Range {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	if m := explicitRangeRe.FindStringSubmatch(lower); m != nil {
		a, c := ParseDecimal(m[1]), ParseDecimal(m[2])
		if a != nil && c != nil {
			low, high := math.Min(*a, *c), math.Max(*a, *c)
			if low >= b.ExplicitMin && high <= b.ExplicitMax {
				return &Range{Low: low, High: high}
			}
		}
	}

	if r := b.fromValues(scanPerSqm(lower, b, true)); r != nil {
		return r
	}
	return b.fromValues(scanPerSqm(lower, b, false))
}

func scanPerSqm(lower string, b Bounds, filtered bool) []float64 {
	var values []float64
	for _, loc := range perSqmRe.FindAllStringSubmatchIndex(lower, -1) {
		if filtered {
			window := lower[max(0, loc[0]-b.Window):min(len(lower), loc[1]+b.Window)]
			if !rentalLexiconRe.MatchString(window) || purchaseLexiconRe.MatchString(window) {
				continue
			}
		}
		v := ParseDecimal(lower[loc[2]:loc[3]])
		if v != nil && *v >= b.ScanMin && *v <= b.ScanMax {
			values = append(values, *v)
		}
	}
	return values
}

func (b Bounds) fromValues(values []float64) *Range {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return &Range{
			Low:  Round2(values[0] * (1 - b.Band)),
			High: Round2(values[0] * (1 + b.Band)),
		}
	}
	r := &Range{Low: values[0], High: values[0]}
	for _, v := range values[1:] {
		r.Low = math.Min(r.Low, v)
		r.High = math.Max(r.High, v)
	}
	return r
}
