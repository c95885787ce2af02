package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client fetches USD prices from an HTTP price service. It batches all
// requested asset IDs into a single request per sample cycle and remembers
// rate-limit responses so the sampler can back off.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu            sync.Mutex
	throttledTill time.Time
}

// NewClient creates a price oracle client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type priceResponse struct {
	Prices map[string]struct {
		USD float64 `json:"usd"`
	} `json:"prices"`
	Error *string `json:"error,omitempty"`
}

// GetPrices fetches USD prices for the requested asset IDs in one call.
// Assets the service does not know are absent from the result. A 429
// response marks the client throttled for five minutes and returns the
// prices it has (none).
func (c *Client) GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error) {
	if len(assetIDs) == 0 {
		return map[string]float64{}, nil
	}

	url := fmt.Sprintf("%s/v1/prices?ids=%s", c.baseURL, strings.Join(assetIDs, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.markThrottled()
		return map[string]float64{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response priceResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, fmt.Errorf("price service error: %s", *response.Error)
	}

	prices := make(map[string]float64, len(response.Prices))
	for id, p := range response.Prices {
		prices[id] = p.USD
	}

	c.clearThrottled()
	return prices, nil
}

// Throttled reports whether a recent response indicated rate limiting.
func (c *Client) Throttled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.throttledTill)
}

func (c *Client) markThrottled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throttledTill = time.Now().Add(5 * time.Minute)
}

func (c *Client) clearThrottled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throttledTill = time.Time{}
}
