package models

// IPOStatus is the lifecycle state of an IPO listing.
type IPOStatus string

const (
	StatusUpcoming IPOStatus = "upcoming"
	StatusOpen     IPOStatus = "open"
	StatusClosed   IPOStatus = "closed"
	StatusListed   IPOStatus = "listed"
)

// IPO is the operator-maintained reference record for a tracked listing.
// Issue prices come from config, not from scraped sources.
type IPO struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	IssuePriceMin float64   `json:"issue_price_min"`
	IssuePriceMax float64   `json:"issue_price_max"`
	LotSize       int       `json:"lot_size"`
	Board         string    `json:"board"` // "mainboard" or "sme"
	Status        IPOStatus `json:"status"`
}

// AvgIssuePrice returns the midpoint of the issue price band.
func (i IPO) AvgIssuePrice() float64 {
	return (i.IssuePriceMin + i.IssuePriceMax) / 2
}

// SourceStat summarizes one source's recent behaviour for operator review.
type SourceStat struct {
	SourceID       string  `json:"source_id"`
	Records        int     `json:"total_records"`
	MeanValue      float64 `json:"avg_gmp"`
	StdDev         float64 `json:"std_deviation"`
	Weight         float64 `json:"reliability_weight"`
	LastUpdate     int64   `json:"last_update_unix"`
	FreshnessHours float64 `json:"data_freshness_hours"`
}
