package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Observation is one source's report of an IPO's grey market premium at a
// point in time. Immutable after construction.
type Observation struct {
	IPOKey        string
	SourceID      string
	Value         float64
	ObservedAt    time.Time
	RawConfidence float64
}

// NewObservation builds a validated Observation. RawConfidence defaults to 1.0.
func NewObservation(ipoKey, sourceID string, value float64, observedAt time.Time) (Observation, error) {
	if ipoKey == "" {
		return Observation{}, fmt.Errorf("observation: ipo key is empty")
	}
	if sourceID == "" {
		return Observation{}, fmt.Errorf("observation: source id is empty")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Observation{}, fmt.Errorf("observation %s/%s: value is not finite", ipoKey, sourceID)
	}
	return Observation{
		IPOKey:        ipoKey,
		SourceID:      sourceID,
		Value:         value,
		ObservedAt:    observedAt,
		RawConfidence: 1.0,
	}, nil
}

// WellFormed reports whether the observation can enter the validation pipeline.
func (o Observation) WellFormed() bool {
	return o.IPOKey != "" && o.SourceID != "" && !math.IsNaN(o.Value) && !math.IsInf(o.Value, 0)
}

// Suffix tokens that sources append inconsistently to company names.
var keyNoise = map[string]bool{
	"ipo":     true,
	"ltd":     true,
	"ltd.":    true,
	"limited": true,
}

// NormalizeIPOKey folds differently-formatted company names from separate
// sources onto one identity: lower-case, whitespace collapsed, noise suffix
// tokens stripped.
func NormalizeIPOKey(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	for len(fields) > 0 && keyNoise[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
