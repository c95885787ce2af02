package model

// TriggerCategory orders trigger rules by priority. Risk always wins over
// analysis, analysis over maintenance; within a cycle at most one category
// dispatches.
type TriggerCategory string

const (
	// TriggerRisk covers capital protection rules: balance floor, drawdown
	// limit, max loss, consecutive losses.
	TriggerRisk TriggerCategory = "risk"
	// TriggerAnalysis covers position review rules: oversized positions and
	// outsized unrealized gains.
	TriggerAnalysis TriggerCategory = "analysis"
	// TriggerMaintenance covers hygiene rules: dust positions, allocation
	// bands, realized gain sweep.
	TriggerMaintenance TriggerCategory = "maintenance"
)
