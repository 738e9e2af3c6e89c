package portal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/julianbeese/mietcheck/internal/domain"
	"github.com/julianbeese/mietcheck/internal/textparse"
)

// genericTextLimit caps the excerpt handed to downstream extractors
const genericTextLimit = 3000

var (
	genericPriceRe = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*(?:,\d{2})?\s*€)`)
	genericAreaRe  = regexp.MustCompile(`(\d{2,3})\s*m²`)
	genericRoomsRe = regexp.MustCompile(`(?i)(\d+(?:,5)?)\s*Zimmer`)
)

// Generic is the low fidelity fallback for unknown sites
type Generic struct{}

// NewGeneric creates the fallback adapter
func NewGeneric() *Generic {
	return &Generic{}
}

func (a *Generic) Name() string { return "generic" }

func (a *Generic) Match(string) bool { return true }

func (a *Generic) NeedsRender() bool { return false }

func (a *Generic) Extract(page *domain.Page) domain.AdapterOutput {
	doc := parseDocument(page)
	text := page.Text

	rec := domain.PropertyRecord{
		Title: firstText(doc, "title"),
	}
	if m := genericPriceRe.FindStringSubmatch(text); m != nil {
		rec.Price = textparse.ParseGermanNumber(m[1])
	}
	if m := genericAreaRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec.LivingSpaceSqm = &v
		}
	}
	if m := genericRoomsRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil {
			rec.Rooms = &v
		}
	}

	return domain.AdapterOutput{
		Portal:   a.Name(),
		Record:   rec,
		FullText: textparse.Truncate(text, genericTextLimit),
	}
}
