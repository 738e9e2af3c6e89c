// Package plausibility decides which extracted values are believable.
package plausibility

import (
	"time"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
)

// Reason strings recorded for rejected values
const (
	ReasonMonthlyTooLow  = "monthly_rent_too_low"
	ReasonMonthlyTooHigh = "monthly_rent_too_high"
	ReasonAnnualTooLow   = "annual_rent_too_low"
	ReasonPriceNotPos    = "price_not_positive"
	ReasonAreaRange      = "living_space_out_of_range"
	ReasonRoomsRange     = "rooms_out_of_range"
	ReasonYearRange      = "year_built_out_of_range"
)

// AbsentRejected is the absence reason for values that failed a check
const AbsentRejected = "rejected by plausibility"

// Policy holds the configured plausibility bounds
type Policy struct {
	MonthlyMin float64
	MonthlyMax float64
	AnnualMin  float64
}

// NewPolicy builds a Policy from configuration
func NewPolicy(cfg config.PolicyConfig) *Policy {
	return &Policy{
		MonthlyMin: cfg.MonthlyRentMin,
		MonthlyMax: cfg.MonthlyRentMax,
		AnnualMin:  cfg.AnnualRentMin,
	}
}

// MonthlyReason returns why a monthly rent is implausible, or "" if it is fine
func (p *Policy) MonthlyReason(v float64) string {
	if v < p.MonthlyMin {
		return ReasonMonthlyTooLow
	}
	if v > p.MonthlyMax {
		return ReasonMonthlyTooHigh
	}
	return ""
}

// MonthlyOK reports whether v is a believable monthly cold rent
func (p *Policy) MonthlyOK(v float64) bool {
	return p.MonthlyReason(v) == ""
}

// AnnualOK reports whether v is a believable annual cold rent
func (p *Policy) AnnualOK(v float64) bool {
	return v >= p.AnnualMin
}

// Result contains the outcome of checking a record
type Result struct {
	Passed bool
	// Rejected maps a field name to the reason it was rejected
	Rejected map[string]string
}

// Engine applies field matchers to merged records
type Engine struct {
	matchers []Matcher
}

// NewEngine creates the engine with the standard matchers
func NewEngine(p *Policy) *Engine {
	return &Engine{
		matchers: []Matcher{
			&PriceMatcher{},
			&AreaMatcher{Min: 5, Max: 5000},
			&RoomsMatcher{Min: 0.5, Max: 100},
			&BuildYearMatcher{Min: 1500, Max: time.Now().Year() + 5},
			&MonthlyRentMatcher{Policy: p},
			&AnnualRentMatcher{Policy: p},
		},
	}
}

// Check runs every matcher against rec
func (e *Engine) Check(rec *domain.PropertyRecord) Result {
	result := Result{Passed: true, Rejected: map[string]string{}}
	for _, m := range e.matchers {
		if reason := m.Match(rec); reason != "" {
			result.Passed = false
			result.Rejected[m.Field()] = reason
		}
	}
	return result
}

// Apply checks rec and clears every rejected field, noting why in rec.Absent.
// A rejected value is treated as not found. When only one half of the rent
// pair is rejected it is derived again from the surviving half, and the
// derived value has to pass its own check.
func (e *Engine) Apply(rec *domain.PropertyRecord) Result {
	result := e.Check(rec)
	for field, reason := range result.Rejected {
		// a half derived from a rejected value goes with it
		if partner := rentPartner(field); partner != "" && rec.Origins[partner] == domain.OriginDerived {
			if _, ok := result.Rejected[partner]; !ok {
				result.Rejected[partner] = reason
			}
		}
	}
	for field := range result.Rejected {
		reject(rec, field)
	}
	if derived := rec.DeriveRentPair(); derived != "" {
		if reason := e.matchField(rec, derived); reason != "" {
			result.Passed = false
			result.Rejected[derived] = reason
			reject(rec, derived)
			other := rentPartner(derived)
			result.Rejected[other] = reason
			reject(rec, other)
		}
	}
	return result
}

func rentPartner(field string) string {
	switch field {
	case domain.FieldRentMonthly:
		return domain.FieldRentAnnual
	case domain.FieldRentAnnual:
		return domain.FieldRentMonthly
	}
	return ""
}

func (e *Engine) matchField(rec *domain.PropertyRecord, field string) string {
	for _, m := range e.matchers {
		if m.Field() == field {
			return m.Match(rec)
		}
	}
	return ""
}

func reject(rec *domain.PropertyRecord, field string) {
	clearField(rec, field)
	if rec.Absent == nil {
		rec.Absent = map[string]string{}
	}
	rec.Absent[field] = AbsentRejected
	delete(rec.Origins, field)
}

func clearField(rec *domain.PropertyRecord, field string) {
	switch field {
	case domain.FieldPrice:
		rec.Price = nil
	case domain.FieldLivingSpace:
		rec.LivingSpaceSqm = nil
	case domain.FieldRooms:
		rec.Rooms = nil
	case domain.FieldYearBuilt:
		rec.YearBuilt = nil
	case domain.FieldRentMonthly:
		rec.RentMonthly = nil
	case domain.FieldRentAnnual:
		rec.RentAnnual = nil
	}
}

// Matcher checks one field of a record
type Matcher interface {
	Field() string
	Match(rec *domain.PropertyRecord) string // Returns empty string if plausible, reason otherwise
}

// PriceMatcher rejects zero or negative prices
type PriceMatcher struct{}

func (m *PriceMatcher) Field() string { return domain.FieldPrice }

func (m *PriceMatcher) Match(r *domain.PropertyRecord) string {
	if r.Price == nil {
		return "" // No price info, let it pass
	}
	if *r.Price <= 0 {
		return ReasonPriceNotPos
	}
	return ""
}

// AreaMatcher filters by living space
type AreaMatcher struct {
	Min float64
	Max float64
}

func (m *AreaMatcher) Field() string { return domain.FieldLivingSpace }

func (m *AreaMatcher) Match(r *domain.PropertyRecord) string {
	if r.LivingSpaceSqm == nil {
		return ""
	}
	if *r.LivingSpaceSqm < m.Min || *r.LivingSpaceSqm > m.Max {
		return ReasonAreaRange
	}
	return ""
}

// RoomsMatcher filters by room count
type RoomsMatcher struct {
	Min float64
	Max float64
}

func (m *RoomsMatcher) Field() string { return domain.FieldRooms }

func (m *RoomsMatcher) Match(r *domain.PropertyRecord) string {
	if r.Rooms == nil {
		return ""
	}
	if *r.Rooms < m.Min || *r.Rooms > m.Max {
		return ReasonRoomsRange
	}
	return ""
}

// BuildYearMatcher filters by construction year
type BuildYearMatcher struct {
	Min int
	Max int
}

func (m *BuildYearMatcher) Field() string { return domain.FieldYearBuilt }

func (m *BuildYearMatcher) Match(r *domain.PropertyRecord) string {
	if r.YearBuilt == nil {
		return ""
	}
	if *r.YearBuilt < m.Min || *r.YearBuilt > m.Max {
		return ReasonYearRange
	}
	return ""
}

// MonthlyRentMatcher applies the monthly rent bounds
type MonthlyRentMatcher struct {
	Policy *Policy
}

func (m *MonthlyRentMatcher) Field() string { return domain.FieldRentMonthly }

func (m *MonthlyRentMatcher) Match(r *domain.PropertyRecord) string {
	if r.RentMonthly == nil {
		return ""
	}
	return m.Policy.MonthlyReason(*r.RentMonthly)
}

// AnnualRentMatcher applies the annual rent floor
type AnnualRentMatcher struct {
	Policy *Policy
}

func (m *AnnualRentMatcher) Field() string { return domain.FieldRentAnnual }

func (m *AnnualRentMatcher) Match(r *domain.PropertyRecord) string {
	if r.RentAnnual == nil || m.Policy.AnnualOK(*r.RentAnnual) {
		return ""
	}
	return ReasonAnnualTooLow
}
