package scheduler

import (
	"context"
	"fmt"
	"time"

	drepo "GreyPulse/internal/domain/repository"
	"GreyPulse/internal/gmp"
	"GreyPulse/internal/usecase"
	"GreyPulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the periodic pipeline: validation cycles on the refresh
// cron and source weight recomputation on the weights cron.
type Scheduler struct {
	cron    *cron.Cron
	run     *usecase.ValidationRun
	store   drepo.ObservationStore
	weights *gmp.WeightTable
	base    map[string]float64
	log     *logger.Logger
	ctx     context.Context

	statsWindow time.Duration
}

func New(ctx context.Context, run *usecase.ValidationRun, store drepo.ObservationStore, weights *gmp.WeightTable, baseWeights map[string]float64, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		run:         run,
		store:       store,
		weights:     weights,
		base:        baseWeights,
		log:         log,
		ctx:         ctx,
		statsWindow: 30 * 24 * time.Hour,
	}
}

// Register installs both cron entries. Expressions use the six-field form
// with a leading seconds column.
func (s *Scheduler) Register(refreshCron, weightsCron string) error {
	if _, err := s.cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.cron.AddFunc(weightsCron, s.weightsTask); err != nil {
		return fmt.Errorf("register weights task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops scheduling and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow triggers one validation cycle outside the cron cadence.
func (s *Scheduler) RunNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	report, err := s.run.RunCycle(s.ctx)
	if err != nil {
		s.log.Error("refresh cycle failed", logger.Error(err))
		return
	}
	if len(report.Errors) > 0 {
		s.log.Warn("refresh cycle completed with errors",
			logger.Strings("errors", report.Errors))
	}
}

// weightsTask recomputes source reliability weights from stored behaviour:
// the configured base weight shrinks for sources with high dispersion or
// stale data. Sources without recent stats keep their base weight.
func (s *Scheduler) weightsTask() {
	stats, err := s.store.SourceStats(s.ctx, time.Now().Add(-s.statsWindow))
	if err != nil {
		s.log.Error("weight reload failed", logger.Error(err))
		return
	}

	next := make(map[string]float64, len(s.base)+len(stats))
	for source, w := range s.base {
		next[source] = w
	}
	for _, st := range stats {
		base, ok := next[st.SourceID]
		if !ok {
			base = 0.5
		}
		next[st.SourceID] = adjustWeight(base, st.MeanValue, st.StdDev, st.FreshnessHours)
	}

	s.weights.Replace(next)
	s.log.Info("source weights reloaded", logger.Int("sources", len(next)))
}

// adjustWeight penalizes dispersion (coefficient of variation) and staleness,
// bounded to [0.1, 1.0] so no source is ever fully silenced or trusted twice.
func adjustWeight(base, mean, stddev, freshnessHours float64) float64 {
	w := base

	if mean != 0 {
		cv := stddev / mean
		if cv < 0 {
			cv = -cv
		}
		w /= 1 + cv/2
	}

	if freshnessHours > 24 {
		w *= 0.7
	}

	if w < 0.1 {
		w = 0.1
	}
	if w > 1.0 {
		w = 1.0
	}
	return w
}
