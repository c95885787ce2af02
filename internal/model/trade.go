package model

import "time"

// ClosedTrade is a completed round trip on a single asset, reported by the
// execution side when a position is fully exited. Trades feed the
// consecutive-loss streak used by the risk rules.
type ClosedTrade struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	AssetID    string    `json:"assetId"`
	Symbol     string    `json:"symbol,omitempty"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Amount     float64   `json:"amount"`
	PnLUSD     float64   `json:"pnlUsd"`
	PnLPercent float64   `json:"pnlPercent"`
}

// TradeStreak summarizes the run of wins or losses at the head of the closed
// trade history. Only one of the two consecutive counters can be non-zero.
type TradeStreak struct {
	ConsecutiveWins   int `json:"consecutiveWins"`
	ConsecutiveLosses int `json:"consecutiveLosses"`
	TotalWins         int `json:"totalWins"`
	TotalLosses       int `json:"totalLosses"`
}

// EntryPrice is the first price observed for a position, used to estimate
// unrealized gain multiples for the analysis rules.
type EntryPrice struct {
	AssetID    string    `json:"assetId"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recordedAt"`
}
