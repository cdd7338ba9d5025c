package gmp

import (
	"math"
	"testing"
)

func TestQuantile_LinearInterpolation(t *testing.T) {
	values := []float64{9, 10, 11, 1000}
	if q := quantile(values, 0.25); math.Abs(q-9.75) > 1e-9 {
		t.Errorf("q25: expected 9.75, got %.4f", q)
	}
	if q := quantile(values, 0.75); math.Abs(q-258.25) > 1e-9 {
		t.Errorf("q75: expected 258.25, got %.4f", q)
	}
}

func TestQuantile_DoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	quantile(values, 0.5)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input mutated: %v", values)
	}
}

func TestPopVariance(t *testing.T) {
	if v := popVariance([]float64{10, 11, 9, 10}); math.Abs(v-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %.6f", v)
	}
	if v := popVariance([]float64{5}); v != 0 {
		t.Errorf("single value variance must be 0, got %.6f", v)
	}
}

func TestWeightTable_GetAndReplace(t *testing.T) {
	wt := NewWeightTable(map[string]float64{"a": 0.9}, 0.5)
	if w := wt.Get("a"); w != 0.9 {
		t.Errorf("expected 0.9, got %.2f", w)
	}
	if w := wt.Get("missing"); w != 0.5 {
		t.Errorf("expected default 0.5, got %.2f", w)
	}
	wt.Replace(map[string]float64{"b": 0.7})
	if w := wt.Get("a"); w != 0.5 {
		t.Errorf("replaced table must not keep old entries, got %.2f", w)
	}
	if w := wt.Get("b"); w != 0.7 {
		t.Errorf("expected 0.7, got %.2f", w)
	}
}
