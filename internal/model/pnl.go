package model

import "time"

// PnLResult is a derived profit/loss calculation over a period. It is never
// persisted as a source of truth; callers recompute it on demand.
//
// AdjustedPnL backs capital flows out of the raw figure:
//
//	adjusted = current - start - deposits + withdrawals
//
// Risk decisions must use the adjusted figures; the raw figures are
// presentation-only.
type PnLResult struct {
	StartValue   float64   `json:"startValue"`
	CurrentValue float64   `json:"currentValue"`
	PeriodStart  time.Time `json:"periodStart"`
	PeriodEnd    time.Time `json:"periodEnd"`

	AbsolutePnL   float64 `json:"absolutePnl"`
	PercentagePnL float64 `json:"percentagePnl"`

	TotalDeposits         float64 `json:"totalDeposits"`
	TotalWithdrawals      float64 `json:"totalWithdrawals"`
	AdjustedPnL           float64 `json:"adjustedPnl"`
	AdjustedPercentagePnL float64 `json:"adjustedPercentagePnl"`
	CapitalFlowImpact     float64 `json:"capitalFlowImpact"`

	// Valid is false when no meaningful PnL could be computed (for example
	// an invalid baseline). Callers must keep functioning with "no PnL
	// known yet" rather than treating this as a failure.
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
