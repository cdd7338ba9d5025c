package gmp

import (
	"time"

	"GreyPulse/internal/domain/models"

	"github.com/google/uuid"
)

// DefaultSpikeThreshold is the minimum absolute percentage move that counts
// as a spike.
const DefaultSpikeThreshold = 8.0

// DetectSpike compares a current validated GMP against a baseline built from
// older observations (their plain mean). It returns a SpikeEvent when the
// move exceeds threshold percent, nil otherwise. A missing or non-positive
// baseline yields no event, not an error.
func DetectSpike(current models.ValidatedGMP, baseline []models.Observation, threshold float64, now time.Time) *models.SpikeEvent {
	if threshold <= 0 {
		threshold = DefaultSpikeThreshold
	}
	if len(baseline) == 0 {
		return nil
	}

	var sum float64
	var n int
	for _, o := range baseline {
		if !o.WellFormed() {
			continue
		}
		sum += o.Value
		n++
	}
	if n == 0 {
		return nil
	}
	previous := sum / float64(n)
	if previous <= 0 {
		return nil
	}

	change := (current.Value - previous) / previous * 100
	abs := change
	if abs < 0 {
		abs = -abs
	}
	if abs < threshold {
		return nil
	}

	direction := models.SpikeIncrease
	if change < 0 {
		direction = models.SpikeDecrease
	}
	return &models.SpikeEvent{
		ID:            uuid.NewString(),
		IPOKey:        current.IPOKey,
		PreviousValue: previous,
		CurrentValue:  current.Value,
		PercentChange: change,
		Direction:     direction,
		Confidence:    current.Confidence,
		DetectedAt:    now,
	}
}
