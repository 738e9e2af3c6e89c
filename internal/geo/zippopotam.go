package geo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/julianbeese/mietcheck/internal/domain"
)

// ZippopotamClient looks up postal codes on api.zippopotam.us
type ZippopotamClient struct {
	baseURL string
	client  jsonClient
}

// NewZippopotamClient creates a client for baseURL
func NewZippopotamClient(baseURL, userAgent string) *ZippopotamClient {
	return &ZippopotamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newJSONClient(userAgent, ""),
	}
}

type zippopotamResponse struct {
	PostCode string `json:"post code"`
	Places   []struct {
		PlaceName string `json:"place name"`
		State     string `json:"state"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// Lookup returns the first place registered for a German postal code
func (c *ZippopotamClient) Lookup(ctx context.Context, postalCode string) (*Place, error) {
	var resp zippopotamResponse
	reqURL := fmt.Sprintf("%s/de/%s", c.baseURL, url.PathEscape(postalCode))
	if err := c.client.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("zippopotam %s: %w", postalCode, err)
	}
	if len(resp.Places) == 0 {
		return nil, fmt.Errorf("zippopotam %s: %w", postalCode, domain.ErrNotFound)
	}

	p := resp.Places[0]
	return &Place{
		City:      strings.TrimSpace(p.PlaceName),
		State:     strings.TrimSpace(p.State),
		Latitude:  parseCoordinate(p.Latitude),
		Longitude: parseCoordinate(p.Longitude),
	}, nil
}

func parseCoordinate(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}
