package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"GreyPulse/internal/domain/models"
	drepo "GreyPulse/internal/domain/repository"
	"GreyPulse/pkg/logger"
)

type fakeAdapter struct {
	id    string
	obs   []models.Observation
	err   error
	calls int
	// failFirst makes the first n calls fail before succeeding.
	failFirst int
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) Fetch(ctx context.Context) ([]models.Observation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failFirst {
		return nil, errors.New("transient")
	}
	return f.obs, nil
}

type fakeMetrics struct {
	fetches      map[string]int
	sourceErrors map[string]int
	errors       map[string]int
	validated    int
	spikes       int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		fetches:      map[string]int{},
		sourceErrors: map[string]int{},
		errors:       map[string]int{},
	}
}

func (m *fakeMetrics) RecordFetch(source string, count int)     { m.fetches[source] += count }
func (m *fakeMetrics) RecordSourceError(source string)          { m.sourceErrors[source]++ }
func (m *fakeMetrics) RecordError(kind string)                  { m.errors[kind]++ }
func (m *fakeMetrics) RecordValidated(string, float64, float64) { m.validated++ }
func (m *fakeMetrics) RecordSpike(string)                       { m.spikes++ }
func (m *fakeMetrics) RecordLatency(string, float64)            {}

func obsAt(t *testing.T, ipo, source string, value float64, at time.Time) models.Observation {
	t.Helper()
	o, err := models.NewObservation(ipo, source, value, at)
	if err != nil {
		t.Fatalf("observation: %v", err)
	}
	return o
}

func quickRetry() RetryPolicy {
	return RetryPolicy{Attempts: 2, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}
}

func TestFetchAll_MergesAcrossSources(t *testing.T) {
	now := time.Now()
	a := &fakeAdapter{id: "alpha", obs: []models.Observation{
		obsAt(t, "acme", "alpha", 40, now),
		obsAt(t, "zenith", "alpha", 12, now),
	}}
	b := &fakeAdapter{id: "beta", obs: []models.Observation{
		obsAt(t, "acme", "beta", 42, now),
	}}
	m := newFakeMetrics()
	o := NewFetchOrchestrator([]drepo.SourceAdapter{a, b}, logger.Nop(), m, WithRetryPolicy(quickRetry()))

	res := o.FetchAll(context.Background())
	if len(res.Batch["acme"]) != 2 {
		t.Errorf("expected 2 observations for acme, got %d", len(res.Batch["acme"]))
	}
	if len(res.Batch["zenith"]) != 1 {
		t.Errorf("expected 1 observation for zenith, got %d", len(res.Batch["zenith"]))
	}
	if m.fetches["alpha"] != 2 || m.fetches["beta"] != 1 {
		t.Errorf("unexpected fetch metrics %v", m.fetches)
	}
}

func TestFetchAll_SourceFailureIsolated(t *testing.T) {
	now := time.Now()
	good := &fakeAdapter{id: "good", obs: []models.Observation{obsAt(t, "acme", "good", 40, now)}}
	bad := &fakeAdapter{id: "bad", err: errors.New("connection refused")}
	m := newFakeMetrics()
	o := NewFetchOrchestrator([]drepo.SourceAdapter{good, bad}, logger.Nop(), m, WithRetryPolicy(quickRetry()))

	res := o.FetchAll(context.Background())
	if len(res.Batch["acme"]) != 1 {
		t.Fatalf("healthy source must still contribute, got %v", res.Batch)
	}
	tally := res.Tally["bad"]
	if tally.Error == "" {
		t.Error("failing source must carry its error in the tally")
	}
	if m.sourceErrors["bad"] == 0 {
		t.Error("expected a source error metric for bad")
	}
}

func TestFetchAll_RetriesTransientFailure(t *testing.T) {
	now := time.Now()
	flaky := &fakeAdapter{
		id:        "flaky",
		obs:       []models.Observation{obsAt(t, "acme", "flaky", 40, now)},
		failFirst: 1,
	}
	o := NewFetchOrchestrator([]drepo.SourceAdapter{flaky}, logger.Nop(), newFakeMetrics(),
		WithRetryPolicy(RetryPolicy{Attempts: 3, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}))

	res := o.FetchAll(context.Background())
	if len(res.Batch["acme"]) != 1 {
		t.Fatalf("expected success after retry, got %v", res.Tally["flaky"])
	}
	if flaky.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", flaky.calls)
	}
}

func TestFetchAll_DedupesSameSourceSameIPO(t *testing.T) {
	now := time.Now()
	a := &fakeAdapter{id: "alpha", obs: []models.Observation{
		obsAt(t, "acme", "alpha", 40, now.Add(-time.Minute)),
		obsAt(t, "acme", "alpha", 45, now),
	}}
	o := NewFetchOrchestrator([]drepo.SourceAdapter{a}, logger.Nop(), newFakeMetrics(), WithRetryPolicy(quickRetry()))

	res := o.FetchAll(context.Background())
	got := res.Batch["acme"]
	if len(got) != 1 {
		t.Fatalf("expected 1 deduped observation, got %d", len(got))
	}
	if got[0].Value != 45 {
		t.Errorf("dedupe must keep the latest value, got %.1f", got[0].Value)
	}
}

func TestDedupeLatest_PreservesOrder(t *testing.T) {
	now := time.Now()
	in := []models.Observation{
		obsAt(t, "acme", "s1", 10, now),
		obsAt(t, "zenith", "s1", 20, now),
		obsAt(t, "acme", "s1", 11, now.Add(time.Minute)),
	}
	out := dedupeLatest(in)
	if len(out) != 2 {
		t.Fatalf("expected 2, got %d", len(out))
	}
	if out[0].IPOKey != "acme" || out[0].Value != 11 {
		t.Errorf("unexpected first element %+v", out[0])
	}
	if out[1].IPOKey != "zenith" {
		t.Errorf("unexpected second element %+v", out[1])
	}
}
