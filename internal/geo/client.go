// Package geo resolves a German postal code to city, state, coordinates and
// suburb using Zippopotam, Nominatim and static fallback tables.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julianbeese/mietcheck/internal/domain"
)

// Place is what a forward lookup knows about a postal code
type Place struct {
	City      string
	State     string
	Latitude  *float64
	Longitude *float64
}

// HasCoordinates reports whether both coordinates are known
func (p *Place) HasCoordinates() bool {
	return p != nil && p.Latitude != nil && p.Longitude != nil
}

// Address is the part of a Nominatim address block used here
type Address struct {
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	County        string `json:"county"`
	State         string `json:"state"`
	Suburb        string `json:"suburb"`
	CityDistrict  string `json:"city_district"`
	Neighbourhood string `json:"neighbourhood"`
	Borough       string `json:"borough"`
	Quarter       string `json:"quarter"`
	Residential   string `json:"residential"`
}

// Locality returns the most specific settlement name
func (a Address) Locality() string {
	return firstNonEmpty(a.City, a.Town, a.Village, a.County)
}

// SuburbName returns the neighborhood label in order of preference
func (a Address) SuburbName() string {
	return firstNonEmpty(a.Suburb, a.CityDistrict, a.Neighbourhood, a.Borough, a.Quarter, a.Residential)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// jsonClient is the shared GET+decode helper of the geo providers
type jsonClient struct {
	httpClient     *http.Client
	userAgent      string
	acceptLanguage string
}

func newJSONClient(userAgent, acceptLanguage string) jsonClient {
	return jsonClient{
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		userAgent:      userAgent,
		acceptLanguage: acceptLanguage,
	}
}

func (c jsonClient) getJSON(ctx context.Context, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.acceptLanguage != "" {
		req.Header.Set("Accept-Language", c.acceptLanguage)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
