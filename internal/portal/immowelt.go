package portal

import (
	"strings"

	"github.com/julianbeese/mietcheck/internal/domain"
)

// Immowelt reads immowelt.de expose pages
type Immowelt struct{}

// NewImmowelt creates the Immowelt adapter
func NewImmowelt() *Immowelt {
	return &Immowelt{}
}

func (a *Immowelt) Name() string { return "immowelt" }

func (a *Immowelt) Match(url string) bool { return strings.Contains(url, "immowelt") }

func (a *Immowelt) NeedsRender() bool { return true }

func (a *Immowelt) Extract(page *domain.Page) domain.AdapterOutput {
	doc := parseDocument(page)

	rec := domain.PropertyRecord{
		Title:          firstText(doc, "h1"),
		Price:          numberOf(firstText(doc, `[class*="price"], [data-test="price"]`)),
		LivingSpaceSqm: numberOf(firstText(doc, `[data-test="living-area"], [class*="living"]`)),
		Rooms:          numberOf(firstText(doc, `[data-test="rooms"], [class*="rooms"]`)),
		Address:        firstText(doc, `[class*="location"], [class*="address"]`),
	}
	if ec := EnergyClassFromText(page.Text); ec != nil {
		rec.EnergyClass = NormalizeEnergyClass(*ec)
	}

	return domain.AdapterOutput{
		Portal:   a.Name(),
		Record:   rec,
		FullText: page.Text,
	}
}
