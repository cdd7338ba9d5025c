package models

import "time"

// ProfitabilityReport is the listing-gain assessment for one IPO, built from
// its validated GMP and the configured issue price band.
type ProfitabilityReport struct {
	IPOKey             string    `json:"ipo_key"`
	Name               string    `json:"name,omitempty"`
	GMP                float64   `json:"gmp"`
	Confidence         float64   `json:"confidence_score"`
	Reliable           bool      `json:"is_reliable"`
	AvgIssuePrice      float64   `json:"avg_issue_price"`
	ExpectedGainPct    float64   `json:"expected_gain_pct"`
	ExpectedGainPerLot float64   `json:"expected_gain_per_lot"`
	Profitable         bool      `json:"is_profitable"`
	RiskLevel          string    `json:"risk_level"`
	Recommendation     string    `json:"recommendation"`
	ComputedAt         time.Time `json:"computed_at"`
}
