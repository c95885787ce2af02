package model

import "time"

// PeakSource records why a peak row was written. Corrections are new rows,
// never edits; the peak history is an audit trail.
type PeakSource string

const (
	// PeakObserved means a snapshot's total value exceeded the previous peak.
	PeakObserved PeakSource = "observed"
	// PeakWithdrawalAdjusted means the peak was proactively lowered after a
	// withdrawal so the next drawdown check is not spuriously negative.
	PeakWithdrawalAdjusted PeakSource = "withdrawal_adjusted"
	// PeakManualCorrection means an operator corrected the peak through the
	// administrative surface.
	PeakManualCorrection PeakSource = "manual_correction"
)

// PeakRecord is one row of the append-only peak history. The current peak is
// the most recently written row.
type PeakRecord struct {
	ID         string     `json:"id"`
	PeakValue  float64    `json:"peakValue"`
	AchievedAt time.Time  `json:"achievedAt"`
	Source     PeakSource `json:"source"`
}
