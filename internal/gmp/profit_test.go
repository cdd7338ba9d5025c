package gmp

import "testing"

func TestProfitable_PercentageGate(t *testing.T) {
	th := DefaultProfitThresholds()
	// 25 over an average price of 100 is a 25% gain.
	if !Profitable(25, 90, 110, th) {
		t.Error("25% gain should be profitable")
	}
}

func TestProfitable_AbsoluteGate(t *testing.T) {
	th := DefaultProfitThresholds()
	// Only a 2% gain, but the absolute premium clears the floor.
	if !Profitable(20, 1000, 1000, th) {
		t.Error("absolute premium of 20 should be profitable")
	}
}

func TestProfitable_NeitherGate(t *testing.T) {
	th := DefaultProfitThresholds()
	if Profitable(5, 1000, 1000, th) {
		t.Error("0.5% gain under the absolute floor should not be profitable")
	}
}

func TestProfitable_NonPositivePrice(t *testing.T) {
	th := DefaultProfitThresholds()
	if Profitable(100, 0, 0, th) {
		t.Error("zero issue price must not be profitable")
	}
	if Profitable(100, -10, 10, th) {
		t.Error("zero average price must not be profitable")
	}
}

func TestRiskLevel_Grades(t *testing.T) {
	cases := []struct {
		name      string
		gmp, conf float64
		sme       bool
		want      string
	}{
		{"strong mainboard", 80, 0.9, false, "Low"},
		{"negative premium", -5, 0.9, false, "Medium"},
		{"thin premium low confidence", 10, 0.5, true, "High"},
		{"mid premium mid confidence", 30, 0.7, false, "Medium"},
	}
	for _, c := range cases {
		if got := RiskLevel(c.gmp, c.conf, c.sme); got != c.want {
			t.Errorf("%s: expected %s, got %s", c.name, c.want, got)
		}
	}
}

func TestRecommendation_Labels(t *testing.T) {
	cases := []struct {
		gmp, conf float64
		want      string
	}{
		{60, 0.85, "Strong Buy"},
		{25, 0.75, "Buy"},
		{5, 0.65, "Hold"},
		{-10, 0.9, "Avoid"},
		{60, 0.5, "Avoid"},
	}
	for _, c := range cases {
		if got := Recommendation(c.gmp, c.conf); got != c.want {
			t.Errorf("gmp=%.0f conf=%.2f: expected %s, got %s", c.gmp, c.conf, c.want, got)
		}
	}
}
