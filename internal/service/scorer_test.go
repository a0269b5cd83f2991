package service

import (
	"math"
	"testing"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

type stubEvidence map[string]domain.MemoryEvidence

func (s stubEvidence) Evidence(fp string, _ []string) domain.MemoryEvidence {
	if ev, ok := s[fp]; ok {
		return ev
	}
	return domain.MemoryEvidence{Fingerprint: fp, Confidence: NeutralConfidence, RecencyWeight: NeutralRecencyWeight}
}

func mustPlan(t *testing.T, goal string, tags []string, steps ...string) domain.Plan {
	t.Helper()
	p, err := domain.NewPlan(goal, tags, steps, domain.LinearDependencies(len(steps)), nil)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	return p
}

func TestPlanScorer_UnseenPlanWithoutTags(t *testing.T) {
	s := NewPlanScorer(stubEvidence{}, DefaultScorerWeights)
	p := mustPlan(t, "goal", nil, "a", "b")

	got := s.Score(p, []string{"auth"})
	want := 0.6*0.5 + 0.25*1.0 + 0.15*0.5
	if math.Abs(got.FinalScore-want) > 1e-9 {
		t.Errorf("FinalScore = %v, want %v", got.FinalScore, want)
	}
	if got.Similarity != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", got.Similarity)
	}
}

func TestPlanScorer_Breakdown(t *testing.T) {
	p := mustPlan(t, "goal", []string{"auth", "prod"}, "a", "b")
	s := NewPlanScorer(stubEvidence{
		p.Fingerprint: {Fingerprint: p.Fingerprint, Confidence: 0.9, RecencyWeight: 0.8, SimilarContextScore: 1.0, Seen: true},
	}, DefaultScorerWeights)

	got := s.Score(p, []string{"auth"})
	if got.BaseConfidence != 0.9 {
		t.Errorf("BaseConfidence = %v, want 0.9", got.BaseConfidence)
	}
	if math.Abs(got.MemoryEvidence-0.9) > 1e-9 {
		t.Errorf("MemoryEvidence = %v, want 0.9", got.MemoryEvidence)
	}
	if math.Abs(got.Similarity-0.5) > 1e-9 {
		t.Errorf("Similarity = %v, want 0.5", got.Similarity)
	}
	want := 0.6*0.9 + 0.25*0.5 + 0.15*0.8
	if math.Abs(got.FinalScore-want) > 1e-9 {
		t.Errorf("FinalScore = %v, want %v", got.FinalScore, want)
	}
}

func TestPlanScorer_ForeignContextIsDiscounted(t *testing.T) {
	p := mustPlan(t, "goal", nil, "a")
	s := NewPlanScorer(stubEvidence{
		p.Fingerprint: {Confidence: 0.95, RecencyWeight: 1, SimilarContextScore: 0, Seen: true},
	}, DefaultScorerWeights)

	got := s.Score(p, []string{"billing"})
	if math.Abs(got.MemoryEvidence-NeutralConfidence) > 1e-9 {
		t.Errorf("MemoryEvidence = %v, want neutral %v", got.MemoryEvidence, NeutralConfidence)
	}
}

func TestPlanScorer_ProvenPlanOutranksFailingPlan(t *testing.T) {
	good := mustPlan(t, "goal", []string{"auth"}, "a", "b")
	bad := mustPlan(t, "goal", []string{"auth"}, "b", "a")
	s := NewPlanScorer(stubEvidence{
		good.Fingerprint: {Confidence: 0.8, RecencyWeight: 1, SimilarContextScore: 1, Seen: true},
		bad.Fingerprint:  {Confidence: 0.2, RecencyWeight: 1, SimilarContextScore: 1, Seen: true},
	}, DefaultScorerWeights)

	scores := FinalScores(s.ScoreAll([]domain.Plan{bad, good}, []string{"auth"}))
	if ArgMax(scores) != 1 {
		t.Errorf("scores = %v, want the proven plan on top", scores)
	}
}

func TestScorerWeights_Sum(t *testing.T) {
	if math.Abs(DefaultScorerWeights.Sum()-1.0) > 1e-9 {
		t.Errorf("default weights sum to %v", DefaultScorerWeights.Sum())
	}
}
