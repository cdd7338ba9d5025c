package models

// Requests for the GMP HTTP endpoints. Defined in domain for consistency and reuse.

type GMPRequest struct {
	IPO    string `query:"ipo" json:"ipo" validate:"required"`
	Window string `query:"window" json:"window" default:"6h"`
}

type SpikeRequest struct {
	IPO       string  `query:"ipo" json:"ipo" validate:"required"`
	Lookback  string  `query:"lookback" json:"lookback" default:"6h"`
	Threshold float64 `query:"threshold" json:"threshold" default:"8.0" validate:"gt=0"`
}

type ProfitabilityRequest struct {
	IPO        string  `query:"ipo" json:"ipo" validate:"required"`
	MinPercent float64 `query:"min_pct" json:"min_pct" default:"10.0" validate:"gte=0"`
	MinAbs     float64 `query:"min_abs" json:"min_abs" default:"20.0" validate:"gte=0"`
}

type SourceStatsRequest struct {
	Days int `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}
