// Package geoip resolves viewer network addresses to language and location.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

// Client looks up an address against an ip-api.com style endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a geolocation lookup client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup resolves one address. The resolver treats any error as a miss and
// substitutes the default context; nothing here reaches a viewer.
func (c *Client) Lookup(ctx context.Context, addr string) (domain.GeoContext, error) {
	fields := url.Values{"fields": {"status,message,countryCode,city,lat,lon,timezone"}}
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(addr), fields.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeoContext{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeoContext{}, fmt.Errorf("geo lookup %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.GeoContext{}, fmt.Errorf("geo lookup %s: status %d", addr, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.GeoContext{}, fmt.Errorf("decode lookup response: %w", err)
	}
	if body.Status != "success" {
		return domain.GeoContext{}, fmt.Errorf("geo lookup %s: %s", addr, body.Message)
	}
	if body.Lat == 0 && body.Lon == 0 {
		return domain.GeoContext{}, fmt.Errorf("geo lookup %s: no coordinates", addr)
	}

	return domain.GeoContext{
		Country:   body.CountryCode,
		City:      body.City,
		Latitude:  body.Lat,
		Longitude: body.Lon,
		Timezone:  body.Timezone,
	}, nil
}

// Lookup API response types.

type lookupResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
}
