package gmp

import (
	"math"
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
)

func baselineObs(t *testing.T, values []float64, at time.Time) []models.Observation {
	t.Helper()
	out := make([]models.Observation, 0, len(values))
	for i, v := range values {
		o, err := models.NewObservation("acme-industries", "s"+string(rune('1'+i)), v, at)
		if err != nil {
			t.Fatalf("observation: %v", err)
		}
		out = append(out, o)
	}
	return out
}

func TestDetectSpike_Increase(t *testing.T) {
	now := time.Now()
	current := models.ValidatedGMP{IPOKey: "acme-industries", Value: 30, Confidence: 0.8}
	baseline := baselineObs(t, []float64{20, 20, 20}, now.Add(-2*time.Hour))

	ev := DetectSpike(current, baseline, 8.0, now)
	if ev == nil {
		t.Fatal("expected spike event")
	}
	if math.Abs(ev.PercentChange-50.0) > 1e-9 {
		t.Errorf("expected +50%% change, got %.4f", ev.PercentChange)
	}
	if ev.Direction != models.SpikeIncrease {
		t.Errorf("expected increase, got %s", ev.Direction)
	}
	if ev.PreviousValue != 20 || ev.CurrentValue != 30 {
		t.Errorf("unexpected values %.2f -> %.2f", ev.PreviousValue, ev.CurrentValue)
	}
	if ev.ID == "" {
		t.Error("expected event id")
	}
}

func TestDetectSpike_Decrease(t *testing.T) {
	now := time.Now()
	current := models.ValidatedGMP{IPOKey: "acme-industries", Value: 10, Confidence: 0.7}
	baseline := baselineObs(t, []float64{20, 20}, now.Add(-time.Hour))

	ev := DetectSpike(current, baseline, 8.0, now)
	if ev == nil {
		t.Fatal("expected spike event")
	}
	if ev.Direction != models.SpikeDecrease {
		t.Errorf("expected decrease, got %s", ev.Direction)
	}
	if math.Abs(ev.PercentChange+50.0) > 1e-9 {
		t.Errorf("expected -50%% change, got %.4f", ev.PercentChange)
	}
}

func TestDetectSpike_BelowThreshold(t *testing.T) {
	now := time.Now()
	current := models.ValidatedGMP{IPOKey: "acme-industries", Value: 21}
	baseline := baselineObs(t, []float64{20, 20}, now.Add(-time.Hour))

	if ev := DetectSpike(current, baseline, 8.0, now); ev != nil {
		t.Fatalf("5%% move must not spike, got %+v", ev)
	}
}

func TestDetectSpike_NoBaseline(t *testing.T) {
	now := time.Now()
	current := models.ValidatedGMP{IPOKey: "acme-industries", Value: 30}

	if ev := DetectSpike(current, nil, 8.0, now); ev != nil {
		t.Fatalf("no baseline must yield no event, got %+v", ev)
	}
}

func TestDetectSpike_NonPositiveBaseline(t *testing.T) {
	now := time.Now()
	current := models.ValidatedGMP{IPOKey: "acme-industries", Value: 30}
	baseline := baselineObs(t, []float64{-10, 10}, now.Add(-time.Hour))

	if ev := DetectSpike(current, baseline, 8.0, now); ev != nil {
		t.Fatalf("zero baseline mean must yield no event, got %+v", ev)
	}
}
