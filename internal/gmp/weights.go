package gmp

import "sync"

// WeightTable maps source ids to reliability weights in (0, 1]. Reads are
// concurrent with the periodic operator reload, hence the lock.
type WeightTable struct {
	mu  sync.RWMutex
	m   map[string]float64
	def float64
}

// NewWeightTable builds a weight table with a fallback weight for unknown
// sources.
func NewWeightTable(weights map[string]float64, defaultWeight float64) *WeightTable {
	if defaultWeight <= 0 {
		defaultWeight = 0.5
	}
	m := make(map[string]float64, len(weights))
	for k, v := range weights {
		m[k] = v
	}
	return &WeightTable{m: m, def: defaultWeight}
}

// Get returns the reliability weight for a source, or the default for
// sources the operator has not rated.
func (t *WeightTable) Get(sourceID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if w, ok := t.m[sourceID]; ok {
		return w
	}
	return t.def
}

// Replace swaps in a new weight mapping atomically.
func (t *WeightTable) Replace(weights map[string]float64) {
	m := make(map[string]float64, len(weights))
	for k, v := range weights {
		m[k] = v
	}
	t.mu.Lock()
	t.m = m
	t.mu.Unlock()
}
