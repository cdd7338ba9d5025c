package scheduler

import (
	"math"
	"testing"
)

func TestAdjustWeight_StableFreshSource(t *testing.T) {
	if w := adjustWeight(0.9, 50, 0, 1); w != 0.9 {
		t.Errorf("zero dispersion and fresh data must keep the base, got %.3f", w)
	}
}

func TestAdjustWeight_DispersionPenalty(t *testing.T) {
	// cv = 1.0 halves the divisor contribution: 0.9 / 1.5 = 0.6
	if w := adjustWeight(0.9, 50, 50, 1); math.Abs(w-0.6) > 1e-9 {
		t.Errorf("expected 0.6, got %.4f", w)
	}
}

func TestAdjustWeight_StalenessPenalty(t *testing.T) {
	if w := adjustWeight(1.0, 50, 0, 48); math.Abs(w-0.7) > 1e-9 {
		t.Errorf("expected 0.7 after staleness penalty, got %.4f", w)
	}
}

func TestAdjustWeight_Floor(t *testing.T) {
	if w := adjustWeight(0.1, 10, 100, 100); w != 0.1 {
		t.Errorf("weight must never drop below 0.1, got %.4f", w)
	}
}

func TestAdjustWeight_NegativeMean(t *testing.T) {
	// Discount GMPs make negative means legitimate; the cv penalty must not flip sign.
	w := adjustWeight(0.8, -20, 10, 1)
	if w <= 0 || w > 0.8 {
		t.Errorf("expected penalized positive weight, got %.4f", w)
	}
}
