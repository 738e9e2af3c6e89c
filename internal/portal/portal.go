// Package portal reads structured listing fields from rendered portal pages.
package portal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

// Adapter extracts a PropertyRecord subset from one portal's pages
type Adapter interface {
	Name() string
	Match(url string) bool
	// NeedsRender reports whether the fields only exist after client-side rendering
	NeedsRender() bool
	Extract(page *domain.Page) domain.AdapterOutput
}

// RentBounds is the plausibility window for rent figures read off a portal
type RentBounds struct {
	Min float64
	Max float64
}

func (b RentBounds) contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Registry dispatches a URL to the first matching adapter, generic last
type Registry struct {
	adapters []Adapter
	fallback Adapter
	logger   *slog.Logger
}

// NewRegistry creates the registry with every supported portal
func NewRegistry(bounds RentBounds, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters: []Adapter{
			NewIS24(bounds),
			NewKleinanzeigen(bounds),
			NewImmowelt(),
		},
		fallback: NewGeneric(),
		logger:   logger,
	}
}

// Select returns the adapter responsible for url
func (r *Registry) Select(url string) Adapter {
	lower := strings.ToLower(url)
	for _, a := range r.adapters {
		if a.Match(lower) {
			return a
		}
	}
	return r.fallback
}

// Extract runs a.Extract and turns a panic inside the adapter into an
// output that only carries the page text.
func (r *Registry) Extract(a Adapter, page *domain.Page) (out domain.AdapterOutput) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("adapter failed", "portal", a.Name(), "url", page.URL, "panic", fmt.Sprint(rec))
			out = domain.AdapterOutput{Portal: a.Name(), FullText: page.Text}
		}
	}()
	return a.Extract(page)
}

var (
	energyLabelRe = regexp.MustCompile(`\b([A-H](?:\+{1,2}|-)?)`)
	energyTextRe  = regexp.MustCompile(`(?i:energieeffizienzklasse)\s*[:\-]?\s*([A-H](?:\+{1,2}|-)?)(?:[^\w+\-]|$)`)
	energyWordRe  = regexp.MustCompile(`(?i)energie(?:effizienz)?klasse\s*[:\-]?`)
)

// NormalizeEnergyClass uppercases a label and keeps the leading class letter
// with its +, ++ or - suffix
func NormalizeEnergyClass(s string) *string {
	s = energyWordRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(strings.ToUpper(s)), "")
	if m := energyLabelRe.FindStringSubmatch(s); m != nil {
		return &m[1]
	}
	return nil
}

// EnergyClassFromText scans page text for "Energieeffizienzklasse: X". The
// class is a capital letter standing on its own, so running words like
// "des Gebäudes" do not count.
func EnergyClassFromText(text string) *string {
	if m := energyTextRe.FindStringSubmatch(text); m != nil {
		v := strings.ToUpper(m[1])
		return &v
	}
	return nil
}

func parseDocument(page *domain.Page) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		// An empty document keeps every selector lookup nil-safe
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}

// firstText returns the trimmed text of the first element matched by the
// selectors, tried in order
func firstText(doc *goquery.Document, selectors ...string) *string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if t := textparse.NormalizeWhitespace(s.Text()); t != "" {
			return &t
		}
	}
	return nil
}

func numberOf(s *string) *float64 {
	if s == nil {
		return nil
	}
	return textparse.ParseGermanNumber(*s)
}

func yearOf(s *string) *int {
	v := numberOf(s)
	if v == nil || *v < 1000 || *v > 2100 {
		return nil
	}
	y := int(*v)
	return &y
}

// jsonLD returns the first embedded schema.org object describing a listing
func jsonLD(doc *goquery.Document) map[string]interface{} {
	var found map[string]interface{}
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		switch data["@type"] {
		case "Apartment", "House", "RealEstateListing", "Product", "SingleFamilyResidence":
			found = data
			return false
		}
		return true
	})
	return found
}

// fillFromJSONLD fills title, description, address and price when the DOM
// selectors left them empty
func fillFromJSONLD(rec *domain.PropertyRecord, data map[string]interface{}) {
	if data == nil {
		return
	}
	if rec.Title == nil {
		if name, ok := data["name"].(string); ok && name != "" {
			rec.Title = &name
		}
	}
	if rec.Description == nil {
		if desc, ok := data["description"].(string); ok && desc != "" {
			rec.Description = &desc
		}
	}
	if rec.Address == nil {
		if addr, ok := data["address"].(map[string]interface{}); ok {
			var parts []string
			for _, key := range []string{"streetAddress", "postalCode", "addressLocality"} {
				if v, ok := addr[key].(string); ok && v != "" {
					parts = append(parts, v)
				}
			}
			if len(parts) > 0 {
				a := strings.Join(parts, " ")
				rec.Address = &a
			}
		}
	}
	if rec.Price == nil {
		if offers, ok := data["offers"].(map[string]interface{}); ok {
			if p := getFloat(offers, "price"); p > 0 {
				rec.Price = &p
			}
		}
	}
}

func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		if f := textparse.ParseGermanNumber(v); f != nil {
			return *f
		}
	}
	return 0
}
