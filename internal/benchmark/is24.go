package benchmark

import (
	"regexp"
	"strings"

	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

const (
	is24Num  = `(\d{1,2}(?:[.,]\d{1,2})?)`
	is24Left = `(?:^|[^\d.,])`
	is24Unit = `\s*(?:€|eur|euro)\s*/?\s*(?:m²|m2|qm)`
)

var (
	is24LowRe  = regexp.MustCompile(is24Left + is24Num + is24Unit + `\s*niedrigster\s*preis`)
	is24HighRe = regexp.MustCompile(is24Left + is24Num + is24Unit + `\s*h[öo]chster\s*preis`)

	// average markers, most specific first
	is24AvgRes = []*regexp.Regexp{
		regexp.MustCompile(`ø\s*` + is24Num + is24Unit),
		regexp.MustCompile(`durchschnittlicher\s*preis[^0-9]{0,50}ø?\s*` + is24Num + is24Unit),
		regexp.MustCompile(`durchschnitt[^0-9]{0,50}` + is24Num + is24Unit),
		regexp.MustCompile(`durchschnittspreis[^0-9]{0,50}` + is24Num + is24Unit),
	}
)

// Stats is what a rent index page states about one area
type Stats struct {
	Low  *float64
	High *float64
	Avg  *float64
}

// Candidate is one URL to probe for a benchmark
type Candidate struct {
	Label string
	URL   string
	Scope domain.BenchmarkScope
}

// IS24Candidates lists the Mietspiegel URLs for an area from most to least
// specific: state/city/suburb, city/city/suburb, city/suburb, state/city, city.
func IS24Candidates(baseURL string, area domain.AreaDescriptor) []Candidate {
	base := strings.TrimRight(baseURL, "/") + "/"
	city := Slug(area.City)
	if city == "" {
		return nil
	}
	var state, suburb string
	if area.State != nil {
		state = Slug(*area.State)
	}
	if area.Suburb != nil {
		suburb = Slug(*area.Suburb)
	}

	var out []Candidate
	add := func(label string, scope domain.BenchmarkScope, parts ...string) {
		out = append(out, Candidate{
			Label: label,
			URL:   base + strings.Join(parts, "/") + "/mietspiegel",
			Scope: scope,
		})
	}

	if suburb != "" {
		if state != "" {
			add("is24 state/city/suburb", domain.ScopeSuburb, state, city, suburb)
		}
		add("is24 city/city/suburb", domain.ScopeSuburb, city, city, suburb)
		add("is24 city/suburb", domain.ScopeSuburb, city, suburb)
	}
	if state != "" {
		add("is24 state/city", domain.ScopeCity, state, city)
	}
	add("is24 city", domain.ScopeCity, city)
	return out
}

// ParseIS24Mietspiegel reads the lowest, highest and average price per
// square meter from an IS24 rent index page. The average falls back to the
// midpoint of low and high. Returns nil unless both bounds or an average
// were found.
func ParseIS24Mietspiegel(text string) *Stats {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var s Stats
	if m := is24LowRe.FindStringSubmatch(lower); m != nil {
		s.Low = textparse.ParseDecimal(m[1])
	}
	if m := is24HighRe.FindStringSubmatch(lower); m != nil {
		s.High = textparse.ParseDecimal(m[1])
	}
	for _, re := range is24AvgRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			s.Avg = textparse.ParseDecimal(m[1])
			break
		}
	}

	if s.Avg == nil && s.Low != nil && s.High != nil {
		s.Avg = midpoint(*s.Low, *s.High)
	}
	if (s.Low != nil && s.High != nil) || s.Avg != nil {
		return &s
	}
	return nil
}

func midpoint(low, high float64) *float64 {
	v := textparse.Round2((low + high) / 2)
	return &v
}
