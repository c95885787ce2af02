package balance

import (
	"context"

	"github.com/watchtowerhq/watchtower/internal/model"
)

// Source supplies the raw account state for the tracked address: cash, the
// primary holding, its staked form, and all open positions by asset ID.
type Source interface {
	GetBalances(ctx context.Context) (model.Balances, error)
}
