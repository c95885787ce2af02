package model

import "time"

// AuditEntry records one administrative operation (peak correction, baseline
// reset, forced sample, manual flow). The audit log is append-only.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// BaselineMarker pins the start of PnL-since-baseline calculations. A reset
// writes a new marker; the newest marker wins.
type BaselineMarker struct {
	ID        string    `json:"id"`
	Value     float64   `json:"value"`
	MarkedAt  time.Time `json:"markedAt"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Balances is the raw output of the external balance source before pricing.
type Balances struct {
	Cash          float64            `json:"cash"`
	PrimaryAmount float64            `json:"primaryAmount"`
	StakedAmount  float64            `json:"stakedAmount"`
	Positions     map[string]float64 `json:"positions"` // asset ID -> amount
}
