package service

import (
	"math"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

const (
	NeutralConfidence    = 0.5
	NeutralRecencyWeight = 0.5
	DefaultLearningRate  = 0.3
	DefaultDecayHalfLife = 24 * time.Hour
)

// RecencyWeight is the exponential decay factor for evidence that is elapsed
// old: 1 when fresh, 0.5 after one half-life. A non-positive half-life
// disables decay.
func RecencyWeight(elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 || halfLife <= 0 {
		return 1.0
	}
	return math.Pow(0.5, float64(elapsed)/float64(halfLife))
}

// OutcomeTarget scales an outcome signal from [-1,1] into [0,1].
func OutcomeTarget(o domain.OutcomeType) float64 {
	return (o.Signal() + 1) / 2
}

// UpdateConfidence blends the previous confidence with the outcome target.
// The previous value keeps weight (1-rate), further decayed by how long ago it
// was last updated, so stale history yields to the newest outcome. The result
// always lies between prev and the target, which keeps it inside [0,1] and
// makes runs of identical outcomes monotone.
func UpdateConfidence(prev float64, outcome domain.OutcomeType, elapsed, halfLife time.Duration, rate float64) float64 {
	rate = clamp01(rate)
	keep := (1 - rate) * RecencyWeight(elapsed, halfLife)
	return clamp01(keep*clamp01(prev) + (1-keep)*OutcomeTarget(outcome))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
