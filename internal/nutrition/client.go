package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the upstream service has no nutrition data
// for the query, including non-success responses and empty result sets.
var ErrNotFound = errors.New("food not found")

const lookupTimeout = 10 * time.Second

// Estimate holds nutrient values for one food description.
// Fields absent from the upstream payload decode as 0.
type Estimate struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	FatG     float64 `json:"fat_total_g"`
	CarbsG   float64 `json:"carbohydrates_total_g"`
}

// Client queries a nutrition API that resolves free-text food descriptions
// into nutrient estimates (API-Ninjas wire format).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client for the given endpoint and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: lookupTimeout,
		},
	}
}

// Lookup resolves a free-text food description into an Estimate.
// Returns ErrNotFound when the service has no match or answers with a
// non-success status; transport failures are returned as wrapped errors so
// callers can still tell the categories apart.
func (c *Client) Lookup(ctx context.Context, query string) (Estimate, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	u := c.baseURL + "?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Estimate{}, fmt.Errorf("creating lookup request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Estimate{}, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Estimate{}, ErrNotFound
	}

	var results []Estimate
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Estimate{}, fmt.Errorf("decoding lookup response: %w", err)
	}
	if len(results) == 0 {
		return Estimate{}, ErrNotFound
	}

	return results[0], nil
}
