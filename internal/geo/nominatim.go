package geo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/julianbeese/mietcheck/internal/domain"
)

// NominatimClient talks to an OpenStreetMap Nominatim instance. The public
// instance allows one request per second, enforced by the limiter.
type NominatimClient struct {
	baseURL     string
	client      jsonClient
	rateLimiter *rate.Limiter
}

// NewNominatimClient creates a client. perSecond <= 0 disables the limit.
func NewNominatimClient(baseURL, userAgent, acceptLanguage string, perSecond float64) *NominatimClient {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &NominatimClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      newJSONClient(userAgent, acceptLanguage),
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

type nominatimPlace struct {
	Lat     string  `json:"lat"`
	Lon     string  `json:"lon"`
	Address Address `json:"address"`
}

// Search runs a structured postal code search and returns the best match
func (c *NominatimClient) Search(ctx context.Context, postalCode, country string) (*Place, error) {
	params := url.Values{}
	params.Set("postalcode", postalCode)
	params.Set("country", country)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")

	var results []nominatimPlace
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, fmt.Errorf("nominatim search %s: %w", postalCode, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("nominatim search %s: %w", postalCode, domain.ErrNotFound)
	}

	r := results[0]
	return &Place{
		City:      r.Address.Locality(),
		State:     strings.TrimSpace(r.Address.State),
		Latitude:  parseCoordinate(r.Lat),
		Longitude: parseCoordinate(r.Lon),
	}, nil
}

// Reverse returns the address block around a coordinate
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64, zoom int) (*Address, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("zoom", strconv.Itoa(zoom))
	params.Set("addressdetails", "1")

	var result nominatimPlace
	if err := c.get(ctx, "/reverse", params, &result); err != nil {
		return nil, fmt.Errorf("nominatim reverse %v,%v: %w", lat, lon, err)
	}
	return &result.Address, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values, dst any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return c.client.getJSON(ctx, c.baseURL+path+"?"+params.Encode(), dst)
}
