package repository

import (
	"context"
	"time"

	"GreyPulse/internal/domain/models"
)

// SourceAdapter fetches one external source's current GMP observations.
// Implementations must honour ctx cancellation; scraping/parsing details stay
// behind this boundary.
type SourceAdapter interface {
	ID() string
	Fetch(ctx context.Context) ([]models.Observation, error)
}

// ObservationStore persists raw observations and serves time-windowed reads
// for validation and spike baselines.
type ObservationStore interface {
	Init(ctx context.Context) error
	InsertBatch(ctx context.Context, obs []models.Observation) error
	// RecentWindow returns observations for an IPO newer than since, ascending by time.
	RecentWindow(ctx context.Context, ipoKey string, since time.Time) ([]models.Observation, error)
	// Baseline returns up to limit observations for an IPO older than before,
	// most recent first.
	Baseline(ctx context.Context, ipoKey string, before time.Time, limit int) ([]models.Observation, error)
	// ActiveKeys lists IPO keys with at least one observation newer than since.
	ActiveKeys(ctx context.Context, since time.Time) ([]string, error)
	SourceStats(ctx context.Context, since time.Time) ([]models.SourceStat, error)
	Health(ctx context.Context) error
	Close() error
}

// SpikePublisher hands spike events off to downstream notification consumers.
type SpikePublisher interface {
	Publish(ctx context.Context, ev *models.SpikeEvent) error
	Close() error
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordFetch(source string, count int)
	RecordSourceError(source string)
	RecordError(kind string)
	RecordValidated(ipoKey string, value, confidence float64)
	RecordSpike(direction string)
	RecordLatency(op string, seconds float64)
}
