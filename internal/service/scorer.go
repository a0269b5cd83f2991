package service

import (
	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

// ScorerWeights are the coefficients of the linear score. They are intended
// to sum to 1.0 but this is not enforced.
type ScorerWeights struct {
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
	Recency    float64 `json:"recency"`
}

// DefaultScorerWeights favour historical confidence.
var DefaultScorerWeights = ScorerWeights{Confidence: 0.6, Similarity: 0.25, Recency: 0.15}

// Sum returns the total weight.
func (w ScorerWeights) Sum() float64 {
	return w.Confidence + w.Similarity + w.Recency
}

// EvidenceSource supplies memory evidence for a fingerprint.
type EvidenceSource interface {
	Evidence(fingerprint string, contextTags []string) domain.MemoryEvidence
}

// PlanScorer combines memory evidence and context similarity into one score.
type PlanScorer struct {
	memory  EvidenceSource
	weights ScorerWeights
}

func NewPlanScorer(memory EvidenceSource, weights ScorerWeights) *PlanScorer {
	return &PlanScorer{memory: memory, weights: weights}
}

// Weights returns the configured weights.
func (s *PlanScorer) Weights() ScorerWeights {
	return s.weights
}

// Score evaluates plan in the situation described by contextTags.
//
// Confidence gathered under a different context is discounted toward the
// neutral prior by the best historical context similarity before it enters
// the sum. An unseen plan that declares no context tags is treated as fully
// similar so untested generic plans are not starved.
func (s *PlanScorer) Score(plan domain.Plan, contextTags []string) domain.PlanScoreBreakdown {
	ev := s.memory.Evidence(plan.Fingerprint, contextTags)

	memoryEvidence := ev.Confidence
	if ev.Seen {
		memoryEvidence = NeutralConfidence + (ev.Confidence-NeutralConfidence)*ev.SimilarContextScore
	}

	var similarity float64
	if !ev.Seen && len(plan.ContextTags) == 0 {
		similarity = 1.0
	} else {
		similarity = Similarity(domain.NormalizeTags(contextTags), plan.ContextTags)
	}

	final := s.weights.Confidence*memoryEvidence +
		s.weights.Similarity*similarity +
		s.weights.Recency*ev.RecencyWeight

	return domain.PlanScoreBreakdown{
		Fingerprint:    plan.Fingerprint,
		BaseConfidence: ev.Confidence,
		MemoryEvidence: memoryEvidence,
		Similarity:     similarity,
		RecencyWeight:  ev.RecencyWeight,
		FinalScore:     final,
	}
}

// ScoreAll scores each candidate and returns breakdowns in candidate order.
func (s *PlanScorer) ScoreAll(candidates []domain.Plan, contextTags []string) []domain.PlanScoreBreakdown {
	out := make([]domain.PlanScoreBreakdown, len(candidates))
	for i, c := range candidates {
		out[i] = s.Score(c, contextTags)
	}
	return out
}

// FinalScores extracts the comparable scores from breakdowns.
func FinalScores(breakdowns []domain.PlanScoreBreakdown) []float64 {
	out := make([]float64, len(breakdowns))
	for i, b := range breakdowns {
		out[i] = b.FinalScore
	}
	return out
}
