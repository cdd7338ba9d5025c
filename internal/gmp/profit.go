package gmp

// ProfitThresholds are the operator- or user-defined gates for calling an
// IPO profitable from its GMP.
type ProfitThresholds struct {
	MinProfitPercentage float64
	MinAbsoluteProfit   float64
}

// DefaultProfitThresholds returns the system defaults.
func DefaultProfitThresholds() ProfitThresholds {
	return ProfitThresholds{MinProfitPercentage: 10.0, MinAbsoluteProfit: 20.0}
}

// Profitable decides whether a GMP over an issue price band indicates a
// profitable listing: either the percentage gain or the absolute gain alone
// qualifies. A non-positive issue price yields false.
func Profitable(gmp, issuePriceMin, issuePriceMax float64, th ProfitThresholds) bool {
	avgPrice := (issuePriceMin + issuePriceMax) / 2
	if avgPrice <= 0 {
		return false
	}

	percentGain := gmp / avgPrice * 100
	return percentGain >= th.MinProfitPercentage || gmp >= th.MinAbsoluteProfit
}
