package model

import (
	"math"
	"time"
)

// ValueTolerance is the maximum absolute difference allowed between a
// snapshot's stored total value and the sum of its parts. Values are USD
// floats assembled from independent price lookups, so exact equality is
// not achievable.
const ValueTolerance = 1e-6

// Position is a single non-primary holding inside a snapshot, keyed by its
// asset ID in Snapshot.Positions.
type Position struct {
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
	Symbol string  `json:"symbol"`
}

// Snapshot is an immutable point-in-time valuation of the tracked account.
// Snapshots are created exclusively by the sampler; everything else holds
// read-only references.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	TotalValue float64 `json:"totalValue"`

	CashBalance float64 `json:"cashBalance"`

	PrimaryBalance float64 `json:"primaryBalance"`
	PrimaryValue   float64 `json:"primaryValue"`
	PrimaryPrice   float64 `json:"primaryPrice"`

	// Staked holdings are valued at the primary asset price.
	StakedBalance float64 `json:"stakedBalance"`
	StakedValue   float64 `json:"stakedValue"`

	// Positions maps asset ID to holding. Keys are unique, iteration order
	// is not meaningful.
	Positions map[string]Position `json:"positions"`

	// PositionCount is derived from Positions and cached for display.
	PositionCount int `json:"positionCount"`

	// Emergency marks a placeholder snapshot created when no real state was
	// available at startup. Emergency snapshots are never used as a PnL
	// baseline.
	Emergency bool `json:"emergency,omitempty"`
}

// PositionsValue returns the summed value of all non-primary positions.
func (s *Snapshot) PositionsValue() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.Value
	}
	return total
}

// ConsistentTotal reports whether TotalValue matches the sum of the
// snapshot's parts within ValueTolerance.
func (s *Snapshot) ConsistentTotal() bool {
	sum := s.CashBalance + s.PrimaryValue + s.StakedValue + s.PositionsValue()
	return math.Abs(s.TotalValue-sum) <= ValueTolerance
}
