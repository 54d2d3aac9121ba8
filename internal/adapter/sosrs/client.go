// Package sosrs fetches raw shelter records from the SOS-RS coordination API.
package sosrs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

// Client pages through the upstream shelters endpoint. It performs no
// retries of its own; failed fetches are retried at the refresh scheduler's
// timer granularity.
type Client struct {
	baseURL    string
	perPage    int
	maxPages   int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an upstream API client. maxPages bounds the pagination
// loop so a source that never reports a consistent count cannot spin it
// forever.
func NewClient(baseURL string, perPage, maxPages int, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		perPage:  perPage,
		maxPages: maxPages,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchAll walks the paginated endpoint until the accumulated results reach
// the latest reported total. The total may drift while volunteers edit
// records mid-fetch; a growing total extends the walk but already-fetched
// pages are never revisited. The loop aborts with ErrUpstreamMalformed when
// it exceeds maxPages or a page comes back empty before the total is met,
// since either means it can never terminate.
func (c *Client) FetchAll(ctx context.Context) ([]domain.RawShelterRecord, error) {
	var records []domain.RawShelterRecord
	total := -1

	for page := 1; ; page++ {
		if page > c.maxPages {
			return nil, fmt.Errorf("%w: page cap %d exceeded with %d/%d records",
				domain.ErrUpstreamMalformed, c.maxPages, len(records), total)
		}

		results, count, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if total != count {
			if total != -1 {
				c.logger.Debug("upstream total drifted", "page", page, "was", total, "now", count)
			}
			total = count
		}

		if len(results) == 0 && len(records) < total {
			return nil, fmt.Errorf("%w: empty page %d with %d/%d records",
				domain.ErrUpstreamMalformed, page, len(records), total)
		}

		records = append(records, results...)
		if len(records) >= total {
			return records, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]domain.RawShelterRecord, int, error) {
	params := url.Values{
		"page":    {strconv.Itoa(page)},
		"perPage": {strconv.Itoa(c.perPage)},
	}
	fullURL := fmt.Sprintf("%s/shelters?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: page %d: %v", domain.ErrUpstreamUnavailable, page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: page %d: status %d", domain.ErrUpstreamUnavailable, page, resp.StatusCode)
	}

	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("%w: page %d: %v", domain.ErrUpstreamMalformed, page, err)
	}
	if body.Data.Count < 0 {
		return nil, 0, fmt.Errorf("%w: page %d: negative count %d", domain.ErrUpstreamMalformed, page, body.Data.Count)
	}

	return body.Data.Results, body.Data.Count, nil
}

// Upstream API response types.

type pageResponse struct {
	Data pageData `json:"data"`
}

type pageData struct {
	Results []domain.RawShelterRecord `json:"results"`
	Count   int                       `json:"count"`
}
