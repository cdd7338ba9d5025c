package gmp

import (
	"math"
	"reflect"
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
)

func makeObs(t *testing.T, source string, value float64, at time.Time) models.Observation {
	t.Helper()
	o, err := models.NewObservation("acme-industries", source, value, at)
	if err != nil {
		t.Fatalf("observation: %v", err)
	}
	return o
}

func defaultValidator() *Validator {
	return NewValidator(DefaultValidatorConfig(), NewWeightTable(nil, 1.0))
}

func TestValidate_InsufficientData(t *testing.T) {
	v := defaultValidator()
	now := time.Now()
	obs := []models.Observation{makeObs(t, "s1", 42, now)}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Reliable {
		t.Error("single observation must not be reliable")
	}
	if got.Value != 0 || got.Confidence != 0 {
		t.Errorf("expected zero value and confidence, got %.2f / %.2f", got.Value, got.Confidence)
	}
	if got.SourceCount != 1 {
		t.Errorf("expected source count 1, got %d", got.SourceCount)
	}
	if got.ExcludedSources == nil || len(got.ExcludedSources) != 0 {
		t.Errorf("expected empty excluded list, got %v", got.ExcludedSources)
	}
}

func TestValidate_ZeroVariance(t *testing.T) {
	v := defaultValidator()
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 50, now),
		makeObs(t, "s2", 50, now),
		makeObs(t, "s3", 50, now),
	}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Value != 50 {
		t.Errorf("expected consensus 50, got %.4f", got.Value)
	}
	if got.Variance != 0 {
		t.Errorf("expected zero variance, got %.6f", got.Variance)
	}
	if !got.Reliable {
		t.Error("identical fresh observations from 3 sources must be reliable")
	}
	if len(got.ExcludedSources) != 0 {
		t.Errorf("no source should be excluded, got %v", got.ExcludedSources)
	}
}

func TestValidate_ExtremeOutlierExcluded(t *testing.T) {
	v := defaultValidator()
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 10, now),
		makeObs(t, "s2", 11, now),
		makeObs(t, "s3", 9, now),
		makeObs(t, "s4", 10, now),
		makeObs(t, "s5", 1000, now),
	}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(got.ExcludedSources) != 1 || got.ExcludedSources[0] != "s5" {
		t.Fatalf("expected exactly s5 excluded, got %v", got.ExcludedSources)
	}
	if math.Abs(got.Value-10.0) > 1e-9 {
		t.Errorf("expected consensus 10, got %.6f", got.Value)
	}
	if math.Abs(got.Variance-0.05) > 1e-4 {
		t.Errorf("expected variance about 0.05, got %.6f", got.Variance)
	}
	if got.SourceCount != 4 {
		t.Errorf("expected 4 retained sources, got %d", got.SourceCount)
	}
	if !got.Reliable {
		t.Error("consensus after exclusion should be reliable")
	}
}

func TestValidate_ZScoreFallbackToIQR(t *testing.T) {
	// With a very low z-threshold every point is flagged by the z-score pass,
	// which means that pass carries no information; only the IQR result
	// should be used then.
	cfg := DefaultValidatorConfig()
	cfg.OutlierZThreshold = 0.4
	v := NewValidator(cfg, NewWeightTable(nil, 1.0))
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 10, now),
		makeObs(t, "s2", 10, now),
		makeObs(t, "s3", 10, now),
		makeObs(t, "s4", 10, now),
		makeObs(t, "s5", 100, now),
	}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(got.ExcludedSources) != 1 || got.ExcludedSources[0] != "s5" {
		t.Fatalf("expected only s5 excluded, got %v", got.ExcludedSources)
	}
	if got.Value != 10 {
		t.Errorf("expected consensus 10, got %.4f", got.Value)
	}
}

func TestValidate_MinSourcesRescue(t *testing.T) {
	cfg := DefaultValidatorConfig()
	cfg.MinSources = 4
	v := NewValidator(cfg, NewWeightTable(nil, 1.0))
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 10, now),
		makeObs(t, "s2", 11, now),
		makeObs(t, "s3", 9, now),
		makeObs(t, "s4", 1000, now),
	}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(got.ExcludedSources) != 0 {
		t.Fatalf("exclusion below min sources must be abandoned, got %v", got.ExcludedSources)
	}
	if got.SourceCount != 4 {
		t.Errorf("expected all 4 observations retained, got %d", got.SourceCount)
	}
	if math.Abs(got.Value-257.5) > 1e-9 {
		t.Errorf("expected mean 257.5 over the full sample, got %.4f", got.Value)
	}
}

func TestValidate_WeightedConsensus(t *testing.T) {
	weights := NewWeightTable(map[string]float64{"s1": 1.0, "s2": 0.5}, 0.5)
	v := NewValidator(DefaultValidatorConfig(), weights)
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 10, now),
		makeObs(t, "s2", 16, now),
	}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	// (10*1.0 + 16*0.5) / 1.5
	if math.Abs(got.Value-12.0) > 1e-9 {
		t.Errorf("expected weighted consensus 12, got %.6f", got.Value)
	}
}

func TestValidate_StaleObservationsFiltered(t *testing.T) {
	v := defaultValidator()
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 50, now),
		makeObs(t, "s2", 50, now.Add(-7*time.Hour)),
		makeObs(t, "s3", 50, now.Add(-8*time.Hour)),
	}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.SourceCount != 1 {
		t.Errorf("stale observations must not count, got %d sources", got.SourceCount)
	}
	if got.Reliable {
		t.Error("one fresh observation is below min sources")
	}
}

func TestValidate_MalformedObservationsFiltered(t *testing.T) {
	v := defaultValidator()
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 50, now),
		makeObs(t, "s2", 52, now),
		{IPOKey: "acme-industries", SourceID: "s3", Value: math.NaN(), ObservedAt: now},
		{IPOKey: "acme-industries", SourceID: "s4", Value: math.Inf(1), ObservedAt: now},
	}

	got, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.SourceCount != 2 {
		t.Errorf("expected 2 well-formed observations, got %d", got.SourceCount)
	}
	if math.Abs(got.Value-51.0) > 1e-9 {
		t.Errorf("expected consensus 51, got %.4f", got.Value)
	}
}

func TestValidate_EmptyKeyRejected(t *testing.T) {
	v := defaultValidator()
	if _, err := v.Validate("", nil, time.Now()); err == nil {
		t.Fatal("expected error for empty ipo key")
	}
}

func TestValidate_Idempotent(t *testing.T) {
	v := defaultValidator()
	now := time.Now()
	obs := []models.Observation{
		makeObs(t, "s1", 30, now.Add(-time.Hour)),
		makeObs(t, "s2", 32, now.Add(-2*time.Hour)),
		makeObs(t, "s3", 31, now.Add(-30*time.Minute)),
	}

	first, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	second, err := v.Validate("acme-industries", obs, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same inputs must produce the same result:\n%+v\n%+v", first, second)
	}
}

func TestValidate_ConfidenceDecaysWithAge(t *testing.T) {
	v := defaultValidator()
	now := time.Now()
	fresh := []models.Observation{
		makeObs(t, "s1", 40, now),
		makeObs(t, "s2", 40, now),
	}
	old := []models.Observation{
		makeObs(t, "s1", 40, now.Add(-5*time.Hour)),
		makeObs(t, "s2", 40, now.Add(-5*time.Hour)),
	}

	freshRes, err := v.Validate("acme-industries", fresh, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	oldRes, err := v.Validate("acme-industries", old, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if oldRes.Confidence >= freshRes.Confidence {
		t.Errorf("older observations must lower confidence: fresh=%.4f old=%.4f",
			freshRes.Confidence, oldRes.Confidence)
	}
}
