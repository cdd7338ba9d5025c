package models

import "time"

// SpikeDirection indicates which way the consensus GMP moved.
type SpikeDirection string

const (
	SpikeIncrease SpikeDirection = "increase"
	SpikeDecrease SpikeDirection = "decrease"
)

// SpikeEvent records a significant move of the consensus GMP between two
// time windows. Ephemeral: consumed by notification consumers, not stored
// by the core.
type SpikeEvent struct {
	ID            string         `json:"id"`
	IPOKey        string         `json:"ipo_key"`
	PreviousValue float64        `json:"previous_value"`
	CurrentValue  float64        `json:"current_value"`
	PercentChange float64        `json:"percentage_change"`
	Direction     SpikeDirection `json:"direction"`
	Confidence    float64        `json:"confidence_score"`
	DetectedAt    time.Time      `json:"detected_at"`
}
