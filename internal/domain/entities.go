package domain

import (
	"math"
	"time"
)

// RentSource tags which rule or source produced a rent figure
type RentSource string

const (
	RentSourcePortal         RentSource = "portal-field"
	RentSourceTextKalt       RentSource = "text-kalt"
	RentSourceTextAnnual     RentSource = "text-annual"
	RentSourceTextMonthlyGen RentSource = "text-monthly-generic"
	RentSourceLLM            RentSource = "llm"
)

// Origin names the collaborator that filled a PropertyRecord field
type Origin string

const (
	OriginPortal  Origin = "portal"
	OriginText    Origin = "text"
	OriginModel   Origin = "model"
	OriginDerived Origin = "derived"
)

// Field names used in PropertyRecord.Origins and PropertyRecord.Absent
const (
	FieldTitle       = "title"
	FieldAddress     = "address"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldLivingSpace = "livingSpaceSqm"
	FieldRooms       = "rooms"
	FieldYearBuilt   = "yearBuilt"
	FieldEnergyClass = "energyClass"
	FieldRentMonthly = "rentMonthly"
	FieldRentAnnual  = "rentAnnual"
)

// PropertyRecord is the merged view of a listing. Nil means unknown, not zero.
type PropertyRecord struct {
	Title              *string    `json:"title,omitempty"`
	Address            *string    `json:"address,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Price              *float64   `json:"price,omitempty"`
	LivingSpaceSqm     *float64   `json:"livingSpaceSqm,omitempty"`
	Rooms              *float64   `json:"rooms,omitempty"`
	YearBuilt          *int       `json:"yearBuilt,omitempty"`
	EnergyClass        *string    `json:"energyClass,omitempty"`
	RentMonthly        *float64   `json:"rentMonthly,omitempty"`
	RentAnnual         *float64   `json:"rentAnnual,omitempty"`
	RentSource         RentSource `json:"rentSource,omitempty"`
	RentContextSnippet *string    `json:"rentContext,omitempty"`

	// Origins records which source set each populated field
	Origins map[string]Origin `json:"origins,omitempty"`
	// Absent records why a field stayed empty
	Absent map[string]string `json:"absent,omitempty"`
}

// PricePerSqm returns price / living space when both are known
func (r *PropertyRecord) PricePerSqm() *float64 {
	if r.Price == nil || r.LivingSpaceSqm == nil || *r.LivingSpaceSqm <= 0 {
		return nil
	}
	v := *r.Price / *r.LivingSpaceSqm
	return &v
}

// DeriveRentPair fills the missing half of the monthly/annual pair from the
// other one and returns the derived field name, or "" when nothing changed.
func (r *PropertyRecord) DeriveRentPair() string {
	var field string
	switch {
	case r.RentMonthly != nil && r.RentAnnual == nil:
		r.RentAnnual = Ptr(*r.RentMonthly * 12)
		field = FieldRentAnnual
	case r.RentAnnual != nil && r.RentMonthly == nil:
		r.RentMonthly = Ptr(math.Round(*r.RentAnnual / 12))
		field = FieldRentMonthly
	default:
		return ""
	}
	if r.Origins == nil {
		r.Origins = map[string]Origin{}
	}
	r.Origins[field] = OriginDerived
	delete(r.Absent, field)
	return field
}

// RentExtraction is the outcome of one rent extraction pass
type RentExtraction struct {
	Monthly        *float64   `json:"rentMonthly,omitempty"`
	Annual         *float64   `json:"rentAnnual,omitempty"`
	Source         RentSource `json:"source,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	ContextSnippet string     `json:"contextSnippet,omitempty"`
}

// Empty reports whether neither a monthly nor an annual figure was found
func (r *RentExtraction) Empty() bool {
	return r == nil || (r.Monthly == nil && r.Annual == nil)
}

// AdapterOutput is what a portal adapter read from a rendered page
type AdapterOutput struct {
	Portal   string         `json:"portal"`
	Record   PropertyRecord `json:"record"`
	FullText string         `json:"-"`
}

// FetchStrategy names how a page's text was obtained
type FetchStrategy string

const (
	StrategyHTTP   FetchStrategy = "http"
	StrategyRender FetchStrategy = "render"
)

// Page is the acquired content of a URL. Never cached.
type Page struct {
	URL      string
	HTML     string
	Text     string
	Strategy FetchStrategy
}

// AreaDescriptor is the geographic area resolved for a postal code
type AreaDescriptor struct {
	PostalCode string   `json:"postalCode"`
	City       string   `json:"city,omitempty"`
	State      *string  `json:"state,omitempty"`
	Suburb     *string  `json:"suburb,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// Found reports whether resolution produced a city
func (a *AreaDescriptor) Found() bool {
	return a != nil && a.City != ""
}

// HasCoordinates reports whether both latitude and longitude are known
func (a *AreaDescriptor) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// BenchmarkScope is the granularity a benchmark was found at
type BenchmarkScope string

const (
	ScopeSuburb BenchmarkScope = "suburb"
	ScopeCity   BenchmarkScope = "city"
)

// RentBenchmark is a market rent range in EUR per square meter
type RentBenchmark struct {
	SourceURL string         `json:"source"`
	Provider  string         `json:"provider,omitempty"`
	RangeLow  *float64       `json:"rangeLow"`
	RangeHigh *float64       `json:"rangeHigh"`
	Average   *float64       `json:"avgPerSqm"`
	Scope     BenchmarkScope `json:"scope,omitempty"`
}

// AnalysisResult is the outcome of analyzing one listing URL
type AnalysisResult struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Portal     string         `json:"portal"`
	Strategy   FetchStrategy  `json:"strategy,omitempty"`
	Record     PropertyRecord `json:"record"`
	AnalyzedAt time.Time      `json:"timestamp"`
}

// MarketRentResult is the outcome of a postal code lookup
type MarketRentResult struct {
	PostalCode string          `json:"postalCode"`
	Found      bool            `json:"ok"`
	Reason     string          `json:"error,omitempty"`
	Area       *AreaDescriptor `json:"area,omitempty"`
	Benchmark  *RentBenchmark  `json:"benchmark,omitempty"`
}

// ActivityLog for debugging and audit
type ActivityLog struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityAction constants
const (
	ActionAnalyze         = "analyze"
	ActionAnalyzeFailed   = "analyze_failed"
	ActionMarketRent      = "market_rent"
	ActionMarketRentEmpty = "market_rent_empty"
	ActionWatchChanged    = "watch_changed"
)

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
