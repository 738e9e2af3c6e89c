package portal

import (
	"strings"

	"github.com/julianbeese/mietcheck/internal/domain"
)

// IS24 reads ImmobilienScout24 expose pages
type IS24 struct {
	bounds RentBounds
}

// NewIS24 creates the ImmobilienScout24 adapter
func NewIS24(bounds RentBounds) *IS24 {
	return &IS24{bounds: bounds}
}

func (a *IS24) Name() string { return "immobilienscout24" }

func (a *IS24) Match(url string) bool { return strings.Contains(url, "immobilienscout24") }

func (a *IS24) NeedsRender() bool { return true }

func (a *IS24) Extract(page *domain.Page) domain.AdapterOutput {
	doc := parseDocument(page)

	rec := domain.PropertyRecord{
		Title:          firstText(doc, "h1", "#expose-title"),
		Price:          numberOf(firstText(doc, ".is24qa-kaufpreis", ".is24qa-gesamtmiete", `[data-qa="price"]`)),
		LivingSpaceSqm: numberOf(firstText(doc, ".is24qa-wohnflaeche", `[data-qa="area-living"]`)),
		Rooms:          numberOf(firstText(doc, ".is24qa-zimmer", `[data-qa="rooms"]`)),
		Address:        firstText(doc, ".address-block", ".is24qa-expose-address"),
		YearBuilt:      yearOf(firstText(doc, ".is24qa-baujahr")),
		Description:    firstText(doc, ".is24qa-objektbeschreibung", `[data-qa="is24qa-objektbeschreibung"]`),
	}

	if ec := firstText(doc, ".is24qa-energieeffizienzklasse", `[data-qa="energy-efficiency-class"]`); ec != nil {
		rec.EnergyClass = NormalizeEnergyClass(*ec)
	}
	if rec.EnergyClass == nil {
		rec.EnergyClass = EnergyClassFromText(page.Text)
	}

	// Rental exposes carry the cold rent as a structured field
	if rent := numberOf(firstText(doc, ".is24qa-kaltmiete", `[data-qa="is24qa-kaltmiete"]`)); rent != nil && a.bounds.contains(*rent) {
		rec.RentMonthly = rent
		rec.RentSource = domain.RentSourcePortal
	}

	fillFromJSONLD(&rec, jsonLD(doc))

	return domain.AdapterOutput{
		Portal:   a.Name(),
		Record:   rec,
		FullText: page.Text,
	}
}
