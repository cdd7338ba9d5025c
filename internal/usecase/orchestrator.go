package usecase

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"GreyPulse/internal/domain/models"
	drepo "GreyPulse/internal/domain/repository"
	"GreyPulse/pkg/cache"
	"GreyPulse/pkg/logger"
)

// RetryPolicy bounds per-source retries. Backoff is exponential between Min
// and Max with jitter.
type RetryPolicy struct {
	Attempts   int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BackoffMin: 200 * time.Millisecond, BackoffMax: 5 * time.Second}
}

// SourceTally is the orchestrator's per-source fetch outcome.
type SourceTally struct {
	Fetched int    `json:"fetched"`
	Stale   bool   `json:"stale"`
	Error   string `json:"error,omitempty"`
}

// FetchResult groups one round's observations by IPO key. A failing source
// never fails the round; its error lands in the tally.
type FetchResult struct {
	Batch map[string][]models.Observation
	Tally map[string]SourceTally
}

// Observations flattens the batch back into one slice for persistence.
func (r FetchResult) Observations() []models.Observation {
	var out []models.Observation
	for _, obs := range r.Batch {
		out = append(out, obs...)
	}
	return out
}

// FetchOrchestrator fans out to all registered source adapters concurrently
// and merges their observations. Source failures are isolated: each adapter
// runs under its own timeout and retry budget, and a source that fails all
// attempts can fall back to its last cached batch.
type FetchOrchestrator struct {
	adapters []drepo.SourceAdapter
	timeout  time.Duration
	retry    RetryPolicy
	cache    cache.Service
	cacheTTL time.Duration
	log      *logger.Logger
	metrics  drepo.Metrics
}

type OrchestratorOption func(*FetchOrchestrator)

// WithFetchTimeout sets the per-adapter deadline for one attempt.
func WithFetchTimeout(d time.Duration) OrchestratorOption {
	return func(o *FetchOrchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetryPolicy overrides the default retry budget.
func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *FetchOrchestrator) {
		if p.Attempts > 0 {
			o.retry = p
		}
	}
}

// WithFetchCache enables the stale-batch fallback through the given cache.
func WithFetchCache(c cache.Service, ttl time.Duration) OrchestratorOption {
	return func(o *FetchOrchestrator) {
		o.cache = c
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

func NewFetchOrchestrator(adapters []drepo.SourceAdapter, log *logger.Logger, metrics drepo.Metrics, opts ...OrchestratorOption) *FetchOrchestrator {
	o := &FetchOrchestrator{
		adapters: adapters,
		timeout:  15 * time.Second,
		retry:    defaultRetryPolicy(),
		cacheTTL: 30 * time.Minute,
		log:      log,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchAll runs one fetch round across every adapter. It always returns a
// result; ctx cancellation is the only way to get an empty one early.
func (o *FetchOrchestrator) FetchAll(ctx context.Context) FetchResult {
	start := time.Now()

	type item struct {
		source string
		obs    []models.Observation
		stale  bool
		err    error
	}
	ch := make(chan item, len(o.adapters))
	var wg sync.WaitGroup

	for _, a := range o.adapters {
		wg.Add(1)
		go func(a drepo.SourceAdapter) {
			defer wg.Done()
			obs, stale, err := o.fetchOne(ctx, a)
			ch <- item{source: a.ID(), obs: obs, stale: stale, err: err}
		}(a)
	}
	go func() { wg.Wait(); close(ch) }()

	res := FetchResult{
		Batch: make(map[string][]models.Observation),
		Tally: make(map[string]SourceTally, len(o.adapters)),
	}
	for it := range ch {
		tally := SourceTally{Fetched: len(it.obs), Stale: it.stale}
		if it.err != nil {
			tally.Error = it.err.Error()
			o.metrics.RecordSourceError(it.source)
			o.log.Warn("source fetch failed",
				logger.String("source", it.source),
				logger.Error(it.err))
		}
		res.Tally[it.source] = tally
		if len(it.obs) > 0 {
			o.metrics.RecordFetch(it.source, len(it.obs))
		}
		for _, obs := range dedupeLatest(it.obs) {
			if !obs.WellFormed() {
				continue
			}
			res.Batch[obs.IPOKey] = append(res.Batch[obs.IPOKey], obs)
		}
	}

	o.metrics.RecordLatency("fetch_all", time.Since(start).Seconds())
	return res
}

// fetchOne runs the retry loop for one adapter. On total failure it tries
// the cached last batch; the returned bool marks a stale (cache) result.
func (o *FetchOrchestrator) fetchOne(ctx context.Context, a drepo.SourceAdapter) ([]models.Observation, bool, error) {
	var lastErr error
	for attempt := 0; attempt < o.retry.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(o.backoff(attempt)):
			}
		}

		actx, cancel := context.WithTimeout(ctx, o.timeout)
		obs, err := a.Fetch(actx)
		cancel()
		if err == nil {
			o.cacheBatch(ctx, a.ID(), obs)
			return obs, false, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, false, lastErr
		}
	}

	if cached, ok := o.cachedBatch(ctx, a.ID()); ok {
		return cached, true, lastErr
	}
	return nil, false, lastErr
}

func (o *FetchOrchestrator) backoff(attempt int) time.Duration {
	d := o.retry.BackoffMin << uint(attempt-1)
	if d > o.retry.BackoffMax || d <= 0 {
		d = o.retry.BackoffMax
	}
	// Jitter spreads retries from sources that failed together.
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

func (o *FetchOrchestrator) cacheBatch(ctx context.Context, source string, obs []models.Observation) {
	if o.cache == nil || len(obs) == 0 {
		return
	}
	if err := o.cache.Set(ctx, fetchCacheKey(source), obs, o.cacheTTL); err != nil {
		o.log.Debug("fetch cache write failed", logger.String("source", source), logger.Error(err))
	}
}

func (o *FetchOrchestrator) cachedBatch(ctx context.Context, source string) ([]models.Observation, bool) {
	if o.cache == nil {
		return nil, false
	}
	var obs []models.Observation
	if err := o.cache.Get(ctx, fetchCacheKey(source), &obs); err != nil {
		return nil, false
	}
	return obs, len(obs) > 0
}

func fetchCacheKey(source string) string { return cache.GenerateKey("greypulse:fetch", source) }

// dedupeLatest keeps one observation per (source, ipo) pair, preferring the
// most recent ObservedAt.
func dedupeLatest(obs []models.Observation) []models.Observation {
	if len(obs) < 2 {
		return obs
	}
	type key struct{ source, ipo string }
	best := make(map[key]models.Observation, len(obs))
	order := make([]key, 0, len(obs))
	for _, o := range obs {
		k := key{o.SourceID, o.IPOKey}
		prev, seen := best[k]
		if !seen {
			order = append(order, k)
			best[k] = o
			continue
		}
		if o.ObservedAt.After(prev.ObservedAt) {
			best[k] = o
		}
	}
	out := make([]models.Observation, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
