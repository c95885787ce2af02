package request

// CorrectPeakRequest represents the request body for a manual peak correction.
type CorrectPeakRequest struct {
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}
