package oracle

import "context"

// PriceOracle supplies USD prices for asset IDs. Implementations report
// back-pressure through Throttled so the sampler can slow down instead of
// hammering a rate-limited upstream.
type PriceOracle interface {
	// GetPrices returns USD prices for the requested asset IDs. Assets the
	// oracle cannot price are simply absent from the result; only transport
	// failures return an error.
	GetPrices(ctx context.Context, assetIDs []string) (map[string]float64, error)

	// Throttled reports whether the oracle is currently rate limited.
	Throttled() bool
}
