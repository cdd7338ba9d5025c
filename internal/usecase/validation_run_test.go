package usecase

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
	drepo "GreyPulse/internal/domain/repository"
	"GreyPulse/internal/gmp"
	"GreyPulse/pkg/logger"
)

type memStore struct {
	mu  sync.Mutex
	obs []models.Observation
}

func (s *memStore) Init(ctx context.Context) error { return nil }

func (s *memStore) InsertBatch(ctx context.Context, obs []models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = append(s.obs, obs...)
	return nil
}

func (s *memStore) RecentWindow(ctx context.Context, ipoKey string, since time.Time) ([]models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Observation
	for _, o := range s.obs {
		if o.IPOKey == ipoKey && !o.ObservedAt.Before(since) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

func (s *memStore) Baseline(ctx context.Context, ipoKey string, before time.Time, limit int) ([]models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Observation
	for _, o := range s.obs {
		if o.IPOKey == ipoKey && o.ObservedAt.Before(before) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ActiveKeys(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, o := range s.obs {
		if !o.ObservedAt.Before(since) && !seen[o.IPOKey] {
			seen[o.IPOKey] = true
			out = append(out, o.IPOKey)
		}
	}
	return out, nil
}

func (s *memStore) SourceStats(ctx context.Context, since time.Time) ([]models.SourceStat, error) {
	return nil, nil
}

func (s *memStore) Health(ctx context.Context) error { return nil }
func (s *memStore) Close() error                     { return nil }

type memPublisher struct {
	mu     sync.Mutex
	events []*models.SpikeEvent
}

func (p *memPublisher) Publish(ctx context.Context, ev *models.SpikeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func newTestRun(t *testing.T, adapters []drepo.SourceAdapter, store *memStore, pub *memPublisher, opts ...RunOption) *ValidationRun {
	t.Helper()
	m := newFakeMetrics()
	orch := NewFetchOrchestrator(adapters, logger.Nop(), m, WithRetryPolicy(quickRetry()))
	validator := gmp.NewValidator(gmp.DefaultValidatorConfig(), gmp.NewWeightTable(nil, 1.0))
	return NewValidationRun(orch, store, pub, validator, m, logger.Nop(), opts...)
}

func TestRunCycle_ValidatesAndPublishesSpike(t *testing.T) {
	now := time.Now()
	store := &memStore{obs: []models.Observation{
		obsAt(t, "acme", "alpha", 10, now.Add(-7*time.Hour)),
		obsAt(t, "acme", "beta", 10, now.Add(-7*time.Hour)),
	}}
	pub := &memPublisher{}
	adapters := []drepo.SourceAdapter{
		&fakeAdapter{id: "alpha", obs: []models.Observation{obsAt(t, "acme", "alpha", 20, now)}},
		&fakeAdapter{id: "beta", obs: []models.Observation{obsAt(t, "acme", "beta", 21, now)}},
	}
	run := newTestRun(t, adapters, store, pub)

	report, err := run.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Fetched != 2 || report.IPOs != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Validated != 1 || report.Reliable != 1 {
		t.Errorf("expected 1 reliable validation, got %+v", report)
	}
	if report.Spikes != 1 || len(pub.events) != 1 {
		t.Fatalf("expected 1 published spike, got %d (%+v)", len(pub.events), report)
	}
	ev := pub.events[0]
	if ev.Direction != models.SpikeIncrease {
		t.Errorf("expected increase, got %s", ev.Direction)
	}
	if math.Abs(ev.PreviousValue-10) > 1e-9 || math.Abs(ev.CurrentValue-20.5) > 1e-9 {
		t.Errorf("unexpected spike values %.2f -> %.2f", ev.PreviousValue, ev.CurrentValue)
	}
}

func TestRunCycle_NoSpikeWithoutBaseline(t *testing.T) {
	now := time.Now()
	store := &memStore{}
	pub := &memPublisher{}
	adapters := []drepo.SourceAdapter{
		&fakeAdapter{id: "alpha", obs: []models.Observation{obsAt(t, "acme", "alpha", 20, now)}},
		&fakeAdapter{id: "beta", obs: []models.Observation{obsAt(t, "acme", "beta", 21, now)}},
	}
	run := newTestRun(t, adapters, store, pub)

	report, err := run.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Spikes != 0 || len(pub.events) != 0 {
		t.Errorf("no baseline must mean no spike, got %+v", report)
	}
	if report.Validated != 1 {
		t.Errorf("validation should still run, got %+v", report)
	}
}

func TestRunCycle_UnreliableSkipsSpikeDetection(t *testing.T) {
	now := time.Now()
	store := &memStore{obs: []models.Observation{
		obsAt(t, "acme", "alpha", 10, now.Add(-7*time.Hour)),
	}}
	pub := &memPublisher{}
	// Single source: below min sources, never reliable.
	adapters := []drepo.SourceAdapter{
		&fakeAdapter{id: "alpha", obs: []models.Observation{obsAt(t, "acme", "alpha", 100, now)}},
	}
	run := newTestRun(t, adapters, store, pub)

	report, err := run.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if report.Reliable != 0 {
		t.Errorf("single-source result must not be reliable: %+v", report)
	}
	if len(pub.events) != 0 {
		t.Error("unreliable results must not produce spikes")
	}
}

func TestValidateIPO_NormalizesKey(t *testing.T) {
	now := time.Now()
	store := &memStore{obs: []models.Observation{
		obsAt(t, "acme industries", "alpha", 30, now),
		obsAt(t, "acme industries", "beta", 32, now),
	}}
	run := newTestRun(t, nil, store, &memPublisher{})

	got, err := run.ValidateIPO(context.Background(), "Acme Industries Ltd", now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.IPOKey != "acme industries" {
		t.Errorf("expected normalized key, got %q", got.IPOKey)
	}
	if math.Abs(got.Value-31) > 1e-9 {
		t.Errorf("expected consensus 31, got %.4f", got.Value)
	}
}

func TestValidateIPOWithin_WindowBoundsStoreRead(t *testing.T) {
	now := time.Now()
	store := &memStore{obs: []models.Observation{
		obsAt(t, "acme", "alpha", 10, now.Add(-2*time.Hour)),
		obsAt(t, "acme", "beta", 10, now.Add(-2*time.Hour)),
		obsAt(t, "acme", "alpha", 50, now),
		obsAt(t, "acme", "beta", 50, now),
	}}
	run := newTestRun(t, nil, store, &memPublisher{})

	got, err := run.ValidateIPOWithin(context.Background(), "acme", time.Hour, now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.SourceCount != 2 {
		t.Errorf("1h window must see only fresh observations, got %d sources", got.SourceCount)
	}
	if math.Abs(got.Value-50) > 1e-9 {
		t.Errorf("expected consensus 50 from the narrow window, got %.4f", got.Value)
	}

	wide, err := run.ValidateIPOWithin(context.Background(), "acme", 6*time.Hour, now)
	if err != nil {
		t.Fatalf("validate wide: %v", err)
	}
	if wide.SourceCount != 4 {
		t.Errorf("6h window must see all four observations, got %d", wide.SourceCount)
	}
	if math.Abs(wide.Value-30) > 1e-9 {
		t.Errorf("expected consensus 30 over the wide window, got %.4f", wide.Value)
	}
}

func TestProfitability_Report(t *testing.T) {
	now := time.Now()
	store := &memStore{obs: []models.Observation{
		obsAt(t, "acme", "alpha", 25, now),
		obsAt(t, "acme", "beta", 25, now),
	}}
	run := newTestRun(t, nil, store, &memPublisher{},
		WithIPOReference([]models.IPO{{
			Key:           "acme",
			Name:          "Acme Industries",
			IssuePriceMin: 90,
			IssuePriceMax: 110,
			LotSize:       100,
			Board:         "sme",
		}}))

	rep, err := run.Profitability(context.Background(), "acme", gmp.ProfitThresholds{}, now)
	if err != nil {
		t.Fatalf("profitability: %v", err)
	}
	if !rep.Profitable {
		t.Error("25% expected gain should be profitable")
	}
	if math.Abs(rep.ExpectedGainPct-25) > 1e-9 {
		t.Errorf("expected 25%% gain, got %.4f", rep.ExpectedGainPct)
	}
	if math.Abs(rep.ExpectedGainPerLot-2500) > 1e-9 {
		t.Errorf("expected 2500 per lot, got %.2f", rep.ExpectedGainPerLot)
	}
	if rep.RiskLevel != "Medium" {
		t.Errorf("expected Medium risk for a thin SME premium, got %s", rep.RiskLevel)
	}
	if rep.Recommendation != "Buy" {
		t.Errorf("expected Buy, got %s", rep.Recommendation)
	}
}

func TestProfitability_UnknownIPO(t *testing.T) {
	run := newTestRun(t, nil, &memStore{}, &memPublisher{})
	if _, err := run.Profitability(context.Background(), "ghost corp", gmp.ProfitThresholds{}, time.Now()); err == nil {
		t.Fatal("expected error for unregistered ipo")
	}
}
