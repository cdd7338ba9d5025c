package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"GreyPulse/internal/domain/models"
	drepo "GreyPulse/internal/domain/repository"
	"GreyPulse/internal/gmp"
	"GreyPulse/pkg/logger"
)

// CycleConfig tunes one validation cycle.
type CycleConfig struct {
	SpikeThreshold float64
	SpikeLookback  time.Duration
	BaselineLimit  int
	Workers        int
	Profit         gmp.ProfitThresholds
}

func defaultCycleConfig() CycleConfig {
	return CycleConfig{
		SpikeThreshold: gmp.DefaultSpikeThreshold,
		SpikeLookback:  6 * time.Hour,
		BaselineLimit:  50,
		Workers:        4,
		Profit:         gmp.DefaultProfitThresholds(),
	}
}

// CycleReport summarizes one full pipeline round.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Fetched   int           `json:"fetched"`
	IPOs      int           `json:"ipos"`
	Validated int           `json:"validated"`
	Reliable  int           `json:"reliable"`
	Spikes    int           `json:"spikes"`
	Errors    []string      `json:"errors,omitempty"`
}

// ValidationRun wires the whole pipeline for one periodic round: fetch from
// all sources, persist the raw batch, validate every touched IPO, detect and
// publish spikes.
type ValidationRun struct {
	orch      *FetchOrchestrator
	store     drepo.ObservationStore
	publisher drepo.SpikePublisher
	validator *gmp.Validator
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       CycleConfig
	ipos      map[string]models.IPO
}

type RunOption func(*ValidationRun)

// WithCycleConfig replaces the default cycle tuning.
func WithCycleConfig(cfg CycleConfig) RunOption {
	return func(r *ValidationRun) {
		def := defaultCycleConfig()
		if cfg.SpikeThreshold <= 0 {
			cfg.SpikeThreshold = def.SpikeThreshold
		}
		if cfg.SpikeLookback <= 0 {
			cfg.SpikeLookback = def.SpikeLookback
		}
		if cfg.BaselineLimit <= 0 {
			cfg.BaselineLimit = def.BaselineLimit
		}
		if cfg.Workers <= 0 {
			cfg.Workers = def.Workers
		}
		if cfg.Profit.MinProfitPercentage <= 0 {
			cfg.Profit.MinProfitPercentage = def.Profit.MinProfitPercentage
		}
		if cfg.Profit.MinAbsoluteProfit <= 0 {
			cfg.Profit.MinAbsoluteProfit = def.Profit.MinAbsoluteProfit
		}
		r.cfg = cfg
	}
}

// WithIPOReference registers the operator-maintained issue price records.
func WithIPOReference(ipos []models.IPO) RunOption {
	return func(r *ValidationRun) {
		for _, ipo := range ipos {
			r.ipos[ipo.Key] = ipo
		}
	}
}

func NewValidationRun(
	orch *FetchOrchestrator,
	store drepo.ObservationStore,
	publisher drepo.SpikePublisher,
	validator *gmp.Validator,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...RunOption,
) *ValidationRun {
	r := &ValidationRun{
		orch:      orch,
		store:     store,
		publisher: publisher,
		validator: validator,
		metrics:   metrics,
		log:       log,
		cfg:       defaultCycleConfig(),
		ipos:      make(map[string]models.IPO),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCycle executes one fetch-store-validate-detect round. Individual IPO
// failures do not abort the cycle; they are reported and counted.
func (r *ValidationRun) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	report := CycleReport{StartedAt: start}

	res := r.orch.FetchAll(ctx)
	obs := res.Observations()
	report.Fetched = len(obs)
	report.IPOs = len(res.Batch)

	if len(obs) > 0 {
		if err := r.store.InsertBatch(ctx, obs); err != nil {
			r.metrics.RecordError("store_insert")
			report.Errors = append(report.Errors, fmt.Sprintf("insert: %v", err))
			r.log.Error("observation insert failed", logger.Error(err))
		}
	}

	keys := make([]string, 0, len(res.Batch))
	for k := range res.Batch {
		keys = append(keys, k)
	}

	type outcome struct {
		validated bool
		reliable  bool
		spiked    bool
		err       error
	}
	out := make(chan outcome, len(keys))
	sem := make(chan struct{}, r.cfg.Workers)
	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			v, err := r.processKey(ctx, key, time.Now())
			if err != nil {
				out <- outcome{err: fmt.Errorf("%s: %w", key, err)}
				return
			}
			out <- outcome{validated: true, reliable: v.result.Reliable, spiked: v.spiked}
		}(key)
	}
	go func() { wg.Wait(); close(out) }()

	for o := range out {
		if o.err != nil {
			report.Errors = append(report.Errors, o.err.Error())
			continue
		}
		if o.validated {
			report.Validated++
		}
		if o.reliable {
			report.Reliable++
		}
		if o.spiked {
			report.Spikes++
		}
	}

	report.Duration = time.Since(start)
	r.metrics.RecordLatency("cycle", report.Duration.Seconds())
	r.log.Info("validation cycle finished",
		logger.Int("fetched", report.Fetched),
		logger.Int("ipos", report.IPOs),
		logger.Int("validated", report.Validated),
		logger.Int("reliable", report.Reliable),
		logger.Int("spikes", report.Spikes),
		logger.Int("errors", len(report.Errors)),
		logger.Duration("took", report.Duration))
	return report, nil
}

type keyOutcome struct {
	result models.ValidatedGMP
	spiked bool
}

// processKey validates one IPO against its stored window and runs spike
// detection against the pre-window baseline.
func (r *ValidationRun) processKey(ctx context.Context, key string, now time.Time) (keyOutcome, error) {
	validated, err := r.ValidateIPO(ctx, key, now)
	if err != nil {
		return keyOutcome{}, err
	}
	out := keyOutcome{result: validated}
	if !validated.Reliable {
		return out, nil
	}

	ev, err := r.DetectSpikeFor(ctx, validated, now)
	if err != nil {
		return out, err
	}
	if ev == nil {
		return out, nil
	}

	out.spiked = true
	r.metrics.RecordSpike(string(ev.Direction))
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.metrics.RecordError("spike_publish")
		r.log.Error("spike publish failed",
			logger.String("ipo", ev.IPOKey),
			logger.Error(err))
	}
	return out, nil
}

// ValidateIPO computes the current consensus for one IPO from the store.
func (r *ValidationRun) ValidateIPO(ctx context.Context, key string, now time.Time) (models.ValidatedGMP, error) {
	return r.ValidateIPOWithin(ctx, key, r.validator.Config().TimeWindow, now)
}

// ValidateIPOWithin is ValidateIPO over a caller-chosen window. Windows wider
// than the validator's own are effectively clamped: the validator still drops
// observations older than its configured limit.
func (r *ValidationRun) ValidateIPOWithin(ctx context.Context, key string, window time.Duration, now time.Time) (models.ValidatedGMP, error) {
	key = models.NormalizeIPOKey(key)
	if window <= 0 {
		window = r.validator.Config().TimeWindow
	}
	since := now.Add(-window)
	obs, err := r.store.RecentWindow(ctx, key, since)
	if err != nil {
		r.metrics.RecordError("store_read")
		return models.ValidatedGMP{}, fmt.Errorf("window read: %w", err)
	}
	validated, err := r.validator.Validate(key, obs, now)
	if err != nil {
		return models.ValidatedGMP{}, err
	}
	r.metrics.RecordValidated(key, validated.Value, validated.Confidence)
	return validated, nil
}

// DetectSpikeFor checks a validated value against its baseline window using
// the configured threshold and lookback.
func (r *ValidationRun) DetectSpikeFor(ctx context.Context, validated models.ValidatedGMP, now time.Time) (*models.SpikeEvent, error) {
	return r.DetectSpikeWith(ctx, validated, r.cfg.SpikeThreshold, r.cfg.SpikeLookback, now)
}

// DetectSpikeWith is DetectSpikeFor with caller-chosen threshold and lookback.
func (r *ValidationRun) DetectSpikeWith(ctx context.Context, validated models.ValidatedGMP, threshold float64, lookback time.Duration, now time.Time) (*models.SpikeEvent, error) {
	if threshold <= 0 {
		threshold = r.cfg.SpikeThreshold
	}
	if lookback <= 0 {
		lookback = r.cfg.SpikeLookback
	}
	before := now.Add(-r.validator.Config().TimeWindow)
	oldest := now.Add(-r.validator.Config().TimeWindow - lookback)
	baseline, err := r.store.Baseline(ctx, validated.IPOKey, before, r.cfg.BaselineLimit)
	if err != nil {
		r.metrics.RecordError("store_read")
		return nil, fmt.Errorf("baseline read: %w", err)
	}
	// Baseline reads newest-first down to the limit; drop anything beyond
	// the lookback horizon.
	recent := baseline[:0]
	for _, o := range baseline {
		if o.ObservedAt.Before(oldest) {
			continue
		}
		recent = append(recent, o)
	}
	return gmp.DetectSpike(validated, recent, threshold, now), nil
}

// Profitability assesses the expected listing gain for one registered IPO.
// Unknown keys and keys without an issue price band return an error.
func (r *ValidationRun) Profitability(ctx context.Context, key string, th gmp.ProfitThresholds, now time.Time) (models.ProfitabilityReport, error) {
	key = models.NormalizeIPOKey(key)
	ipo, ok := r.ipos[key]
	if !ok {
		return models.ProfitabilityReport{}, fmt.Errorf("unknown ipo %q", key)
	}
	if th.MinProfitPercentage <= 0 && th.MinAbsoluteProfit <= 0 {
		th = r.cfg.Profit
	}

	validated, err := r.ValidateIPO(ctx, key, now)
	if err != nil {
		return models.ProfitabilityReport{}, err
	}

	avgPrice := ipo.AvgIssuePrice()
	report := models.ProfitabilityReport{
		IPOKey:         key,
		Name:           ipo.Name,
		GMP:            validated.Value,
		Confidence:     validated.Confidence,
		Reliable:       validated.Reliable,
		AvgIssuePrice:  avgPrice,
		Profitable:     gmp.Profitable(validated.Value, ipo.IssuePriceMin, ipo.IssuePriceMax, th),
		RiskLevel:      gmp.RiskLevel(validated.Value, validated.Confidence, strings.EqualFold(ipo.Board, "sme")),
		Recommendation: gmp.Recommendation(validated.Value, validated.Confidence),
		ComputedAt:     now,
	}
	if avgPrice > 0 {
		report.ExpectedGainPct = validated.Value / avgPrice * 100
	}
	report.ExpectedGainPerLot = validated.Value * float64(ipo.LotSize)
	return report, nil
}

// ValidateActive recomputes the consensus for every IPO with observations in
// the current window.
func (r *ValidationRun) ValidateActive(ctx context.Context, now time.Time) ([]models.ValidatedGMP, error) {
	since := now.Add(-r.validator.Config().TimeWindow)
	keys, err := r.store.ActiveKeys(ctx, since)
	if err != nil {
		r.metrics.RecordError("store_read")
		return nil, fmt.Errorf("active keys: %w", err)
	}
	out := make([]models.ValidatedGMP, 0, len(keys))
	for _, key := range keys {
		v, err := r.ValidateIPO(ctx, key, now)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// SourceStats returns stored per-source behaviour with the live reliability
// weight attached.
func (r *ValidationRun) SourceStats(ctx context.Context, since time.Time) ([]models.SourceStat, error) {
	stats, err := r.store.SourceStats(ctx, since)
	if err != nil {
		r.metrics.RecordError("store_read")
		return nil, fmt.Errorf("source stats: %w", err)
	}
	for i := range stats {
		stats[i].Weight = r.validator.Weights().Get(stats[i].SourceID)
	}
	return stats, nil
}

// Health reports storage reachability.
func (r *ValidationRun) Health(ctx context.Context) error {
	return r.store.Health(ctx)
}

// IPOs returns the registered reference records.
func (r *ValidationRun) IPOs() []models.IPO {
	out := make([]models.IPO, 0, len(r.ipos))
	for _, ipo := range r.ipos {
		out = append(out, ipo)
	}
	return out
}

// Lookup returns the reference record for a key, if registered.
func (r *ValidationRun) Lookup(key string) (models.IPO, bool) {
	ipo, ok := r.ipos[models.NormalizeIPOKey(key)]
	return ipo, ok
}
