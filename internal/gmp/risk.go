package gmp

// RiskLevel grades an IPO from its GMP, the confidence of that value, and
// whether it lists on the SME board. Negative or thin premiums and shaky
// confidence push the grade up.
func RiskLevel(gmp, confidence float64, sme bool) string {
	risk := 0

	switch {
	case gmp < 0:
		risk += 3
	case gmp < 20:
		risk += 2
	case gmp < 50:
		risk += 1
	}

	switch {
	case confidence < 0.6:
		risk += 2
	case confidence < 0.8:
		risk += 1
	}

	if sme {
		risk++
	}

	switch {
	case risk >= 4:
		return "High"
	case risk >= 2:
		return "Medium"
	default:
		return "Low"
	}
}

// Recommendation maps GMP and confidence onto a coarse action label.
func Recommendation(gmp, confidence float64) string {
	switch {
	case gmp >= 50 && confidence >= 0.8:
		return "Strong Buy"
	case gmp >= 20 && confidence >= 0.7:
		return "Buy"
	case gmp >= 0 && confidence >= 0.6:
		return "Hold"
	default:
		return "Avoid"
	}
}
