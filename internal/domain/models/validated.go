package models

import "time"

// ValidatedGMP is the validator's output for one IPO at one evaluation time:
// the outlier-trimmed, reliability-weighted consensus value with an explicit
// reliability verdict.
type ValidatedGMP struct {
	IPOKey          string    `json:"ipo_key"`
	Value           float64   `json:"validated_value"`
	Confidence      float64   `json:"confidence_score"`
	Variance        float64   `json:"variance"`
	SourceCount     int       `json:"source_count"`
	Reliable        bool      `json:"is_reliable"`
	ExcludedSources []string  `json:"excluded_sources"`
	ComputedAt      time.Time `json:"computed_at"`
}
