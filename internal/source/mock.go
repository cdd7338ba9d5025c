package source

import (
	"context"
	"time"

	"GreyPulse/internal/domain/models"
)

// MockAdapter serves a fixed table of GMP values, stamped at fetch time.
// Used in dev configs so the pipeline runs without live providers.
type MockAdapter struct {
	id     string
	values map[string]float64
}

func NewMockAdapter(id string, values map[string]float64) *MockAdapter {
	return &MockAdapter{id: id, values: values}
}

func (a *MockAdapter) ID() string { return a.id }

func (a *MockAdapter) Fetch(ctx context.Context) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.Observation, 0, len(a.values))
	for name, value := range a.values {
		obs, err := models.NewObservation(models.NormalizeIPOKey(name), a.id, value, now)
		if err != nil {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}
