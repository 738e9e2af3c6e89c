package geo

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/julianbeese/mietcheck/internal/config"
	"github.com/julianbeese/mietcheck/internal/domain"
)

var postalCodeRe = regexp.MustCompile(`^\d{5}$`)

// PostalLookup is the primary postal code service
type PostalLookup interface {
	Lookup(ctx context.Context, postalCode string) (*Place, error)
}

// Geocoder provides forward search and reverse geocoding
type Geocoder interface {
	Search(ctx context.Context, postalCode, country string) (*Place, error)
	Reverse(ctx context.Context, lat, lon float64, zoom int) (*Address, error)
}

// Resolver runs the postal code resolution chain
type Resolver struct {
	postal       PostalLookup
	geocoder     Geocoder
	reverseZoom  int
	suburbTables map[string]map[string]string
	logger       *slog.Logger
}

// NewResolver creates a resolver backed by Zippopotam and Nominatim
func NewResolver(cfg config.GeoConfig, logger *slog.Logger) *Resolver {
	return NewResolverWith(
		NewZippopotamClient(cfg.ZippopotamURL, cfg.UserAgent),
		NewNominatimClient(cfg.NominatimURL, cfg.UserAgent, cfg.AcceptLanguage, cfg.NominatimRate),
		cfg,
		logger,
	)
}

// NewResolverWith creates a resolver over arbitrary providers
func NewResolverWith(postal PostalLookup, geocoder Geocoder, cfg config.GeoConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	zoom := cfg.ReverseZoom
	if zoom <= 0 {
		zoom = 16
	}
	return &Resolver{
		postal:       postal,
		geocoder:     geocoder,
		reverseZoom:  zoom,
		suburbTables: cfg.SuburbTables,
		logger:       logger,
	}
}

// ValidPostalCode reports whether s is a five digit German postal code
func ValidPostalCode(s string) bool {
	return postalCodeRe.MatchString(s)
}

// Resolve never fails. Each step swallows its own errors and leaves fields
// empty for the next one; callers check Found() on the result.
func (r *Resolver) Resolve(ctx context.Context, postalCode string) domain.AreaDescriptor {
	plz := strings.TrimSpace(postalCode)
	area := domain.AreaDescriptor{PostalCode: plz}
	if !ValidPostalCode(plz) {
		r.logger.Debug("invalid postal code", "postal_code", postalCode)
		return area
	}

	var state string

	// 1. primary postal code service
	if r.postal != nil {
		place, err := r.postal.Lookup(ctx, plz)
		if err != nil {
			r.logger.Debug("postal lookup failed", "postal_code", plz, "error", err)
		} else {
			area.City = place.City
			state = place.State
			area.Latitude, area.Longitude = place.Latitude, place.Longitude
		}
	}

	// 2. structured search when coordinates are missing
	if !area.HasCoordinates() && r.geocoder != nil {
		place, err := r.geocoder.Search(ctx, plz, "de")
		if err != nil {
			r.logger.Debug("geocode search failed", "postal_code", plz, "error", err)
		} else {
			if area.City == "" {
				area.City = place.City
			}
			if state == "" {
				state = place.State
			}
			area.Latitude, area.Longitude = place.Latitude, place.Longitude
		}
	}

	// 3. reverse geocode for the suburb
	var suburb string
	if area.HasCoordinates() && r.geocoder != nil {
		addr, err := r.geocoder.Reverse(ctx, *area.Latitude, *area.Longitude, r.reverseZoom)
		if err != nil {
			r.logger.Warn("reverse geocode failed", "postal_code", plz, "error", err)
		} else {
			suburb = addr.SuburbName()
		}
	}

	// 4. static table
	if suburb == "" {
		if table, ok := r.suburbTables[area.City]; ok {
			suburb = table[plz]
		}
	}

	if state != "" {
		area.State = domain.Ptr(state)
	}
	if suburb != "" {
		area.Suburb = domain.Ptr(suburb)
	}

	r.logger.Debug("postal code resolved",
		"postal_code", plz,
		"city", area.City,
		"state", state,
		"suburb", suburb)

	return area
}
