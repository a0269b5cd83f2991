package service

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

var (
	ErrEmptyCandidateSet      = errors.New("candidate set is empty")
	ErrCandidateScoreMismatch = errors.New("candidates and scores differ in length")
	ErrInvalidEpsilon         = errors.New("epsilon must be within [0, 1]")
)

// Selection is the outcome of an epsilon-greedy choice.
type Selection struct {
	Index    int
	Plan     domain.Plan
	Explored bool
}

// SelectionPolicy is an epsilon-greedy chooser. Randomness comes only from
// the injected source.
type SelectionPolicy struct {
	rng *rand.Rand
}

func NewSelectionPolicy(rng *rand.Rand) *SelectionPolicy {
	return &SelectionPolicy{rng: rng}
}

// Select explores uniformly with probability epsilon and otherwise exploits
// the highest score, breaking ties by the earliest index. With epsilon 0 no
// random draw is made.
func (p *SelectionPolicy) Select(candidates []domain.Plan, scores []float64, epsilon float64) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrEmptyCandidateSet
	}
	if len(candidates) != len(scores) {
		return Selection{}, fmt.Errorf("%w: %d candidates, %d scores", ErrCandidateScoreMismatch, len(candidates), len(scores))
	}
	if epsilon < 0 || epsilon > 1 {
		return Selection{}, fmt.Errorf("%w: %v", ErrInvalidEpsilon, epsilon)
	}

	if epsilon > 0 && p.rng.Float64() < epsilon {
		i := p.rng.IntN(len(candidates))
		return Selection{Index: i, Plan: candidates[i], Explored: true}, nil
	}

	best := ArgMax(scores)
	return Selection{Index: best, Plan: candidates[best]}, nil
}

// ArgMax returns the index of the first maximum in scores.
func ArgMax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
