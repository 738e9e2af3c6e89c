// Package merge combines adapter fields, free-text rent and model rent into
// one PropertyRecord.
package merge

import (
	"github.com/julianbeese/mietcheck/internal/domain"
)

// Absence reasons
const (
	AbsentNotOnPage     = "not on page"
	AbsentModelDisabled = "model disabled"
)

type rentCandidate struct {
	ext    *domain.RentExtraction
	origin domain.Origin
}

// Merge builds the canonical record. Structured fields always come from the
// adapter. Rent figures are taken model first, then free text, then the
// portal's own field; a field already set is never overwritten. When exactly
// one of monthly/annual is set the other is derived; two present values are
// kept as they are.
func Merge(adapter domain.AdapterOutput, freeText, model *domain.RentExtraction) domain.PropertyRecord {
	src := adapter.Record
	rec := domain.PropertyRecord{
		Origins: map[string]domain.Origin{},
		Absent:  map[string]string{},
	}

	rec.Title = fillString(&rec, domain.FieldTitle, src.Title)
	rec.Address = fillString(&rec, domain.FieldAddress, src.Address)
	rec.Description = fillString(&rec, domain.FieldDescription, src.Description)
	rec.EnergyClass = fillString(&rec, domain.FieldEnergyClass, src.EnergyClass)
	rec.Price = fillFloat(&rec, domain.FieldPrice, src.Price)
	rec.LivingSpaceSqm = fillFloat(&rec, domain.FieldLivingSpace, src.LivingSpaceSqm)
	rec.Rooms = fillFloat(&rec, domain.FieldRooms, src.Rooms)
	if src.YearBuilt != nil {
		rec.YearBuilt = domain.Ptr(*src.YearBuilt)
		rec.Origins[domain.FieldYearBuilt] = domain.OriginPortal
	} else {
		rec.Absent[domain.FieldYearBuilt] = AbsentNotOnPage
	}

	candidates := []rentCandidate{
		{model, domain.OriginModel},
		{freeText, domain.OriginText},
		{portalRent(src), domain.OriginPortal},
	}

	var monthlyFrom, annualFrom *domain.RentExtraction
	for _, c := range candidates {
		if c.ext.Empty() {
			continue
		}
		if rec.RentMonthly == nil && c.ext.Monthly != nil {
			rec.RentMonthly = domain.Ptr(*c.ext.Monthly)
			rec.Origins[domain.FieldRentMonthly] = c.origin
			monthlyFrom = c.ext
		}
		if rec.RentAnnual == nil && c.ext.Annual != nil {
			rec.RentAnnual = domain.Ptr(*c.ext.Annual)
			rec.Origins[domain.FieldRentAnnual] = c.origin
			annualFrom = c.ext
		}
	}

	if rec.DeriveRentPair() == "" && rec.RentMonthly == nil && rec.RentAnnual == nil {
		rec.Absent[domain.FieldRentMonthly] = AbsentNotOnPage
		rec.Absent[domain.FieldRentAnnual] = AbsentNotOnPage
	}

	rentFrom := monthlyFrom
	if rentFrom == nil {
		rentFrom = annualFrom
	}
	if rentFrom != nil {
		rec.RentSource = rentFrom.Source
		if rentFrom.ContextSnippet != "" {
			rec.RentContextSnippet = domain.Ptr(rentFrom.ContextSnippet)
		}
	}

	return rec
}

// NoteModelDisabled marks missing rent fields as unresolved because the model
// was not consulted
func NoteModelDisabled(rec *domain.PropertyRecord) {
	for _, f := range []string{domain.FieldRentMonthly, domain.FieldRentAnnual} {
		if _, ok := rec.Absent[f]; ok {
			rec.Absent[f] = AbsentModelDisabled
		}
	}
}

// portalRent lifts the adapter's native rent fields into an extraction
func portalRent(r domain.PropertyRecord) *domain.RentExtraction {
	if r.RentMonthly == nil && r.RentAnnual == nil {
		return nil
	}
	ext := &domain.RentExtraction{
		Monthly: r.RentMonthly,
		Annual:  r.RentAnnual,
		Source:  r.RentSource,
	}
	if ext.Source == "" {
		ext.Source = domain.RentSourcePortal
	}
	if r.RentContextSnippet != nil {
		ext.ContextSnippet = *r.RentContextSnippet
	}
	return ext
}

func fillString(rec *domain.PropertyRecord, field string, v *string) *string {
	if v == nil || *v == "" {
		rec.Absent[field] = AbsentNotOnPage
		return nil
	}
	rec.Origins[field] = domain.OriginPortal
	return domain.Ptr(*v)
}

func fillFloat(rec *domain.PropertyRecord, field string, v *float64) *float64 {
	if v == nil {
		rec.Absent[field] = AbsentNotOnPage
		return nil
	}
	rec.Origins[field] = domain.OriginPortal
	return domain.Ptr(*v)
}
