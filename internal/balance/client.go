package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/watchtowerhq/watchtower/internal/apperrors"
	"github.com/watchtowerhq/watchtower/internal/model"
)

// Client fetches account balances from an HTTP wallet service.
type Client struct {
	baseURL    string
	address    string
	httpClient *http.Client
}

// NewClient creates a balance client for the given wallet service and
// tracked address.
func NewClient(baseURL, address string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		address:    address,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type balanceResponse struct {
	Cash          float64            `json:"cash"`
	PrimaryAmount float64            `json:"primaryAmount"`
	StakedAmount  float64            `json:"stakedAmount"`
	Positions     map[string]float64 `json:"positions"`
	Error         *string            `json:"error,omitempty"`
}

// GetBalances fetches the current account state for the tracked address.
func (c *Client) GetBalances(ctx context.Context) (model.Balances, error) {
	url := fmt.Sprintf("%s/v1/balances/%s", c.baseURL, c.address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Balances{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Balances{}, fmt.Errorf("%w: %s", apperrors.ErrBalancesUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Balances{}, fmt.Errorf("%w: wallet service returned status %d",
			apperrors.ErrBalancesUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Balances{}, err
	}

	var response balanceResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return model.Balances{}, err
	}
	if response.Error != nil {
		return model.Balances{}, fmt.Errorf("%w: %s", apperrors.ErrBalancesUnavailable, *response.Error)
	}

	balances := model.Balances{
		Cash:          response.Cash,
		PrimaryAmount: response.PrimaryAmount,
		StakedAmount:  response.StakedAmount,
		Positions:     response.Positions,
	}
	if balances.Positions == nil {
		balances.Positions = map[string]float64{}
	}

	return balances, nil
}
