package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeType represents the result of one executed plan attempt.
type OutcomeType string

const (
	OutcomeSuccess OutcomeType = "success"
	OutcomeFailure OutcomeType = "failure"
	OutcomePartial OutcomeType = "partial"
)

func ValidOutcomeType(s string) bool {
	switch OutcomeType(s) {
	case OutcomeSuccess, OutcomeFailure, OutcomePartial:
		return true
	}
	return false
}

// Signal maps an outcome onto [-1, 1]: +1 success, -1 failure, 0 partial.
func (o OutcomeType) Signal() float64 {
	switch o {
	case OutcomeSuccess:
		return 1
	case OutcomeFailure:
		return -1
	}
	return 0
}

// EpisodicRecord is one line of the append-only outcome ledger.
type EpisodicRecord struct {
	ID              uuid.UUID   `json:"id"`
	Fingerprint     string      `json:"fingerprint"`
	Goal            string      `json:"goal"`
	ContextTags     []string    `json:"context_tags"`
	Steps           []string    `json:"steps"`
	Outcome         OutcomeType `json:"outcome"`
	ScoreDelta      float64     `json:"score_delta"`
	ConfidenceAfter float64     `json:"confidence_after"`
	Timestamp       time.Time   `json:"ts"`
	Notes           string      `json:"notes,omitempty"`

	// Set on failure so the failure memory can be rebuilt from the ledger.
	FailedAction string `json:"failed_action,omitempty"`
	FailureCause string `json:"failure_cause,omitempty"`
}

// OutcomeEvent is what the feedback loop hands to the memory store after an
// execution. The store assigns ID, confidence and score delta.
type OutcomeEvent struct {
	Plan         Plan
	ContextTags  []string
	Outcome      OutcomeType
	FailedAction string
	FailureCause string
	Notes        string
	Timestamp    time.Time
}

// MemoryAggregate is the per-fingerprint working index derived from the ledger.
type MemoryAggregate struct {
	Fingerprint    string     `json:"fingerprint"`
	Goal           string     `json:"goal"`
	SuccessCount   int        `json:"success_count"`
	FailureCount   int        `json:"failure_count"`
	PartialCount   int        `json:"partial_count"`
	LastSeen       time.Time  `json:"last_seen"`
	Confidence     float64    `json:"confidence"`
	ContextHistory [][]string `json:"context_history"`
}

// Attempts returns the total number of recorded outcomes.
func (a MemoryAggregate) Attempts() int {
	return a.SuccessCount + a.FailureCount + a.PartialCount
}

// MemoryEvidence is the aggregated historical signal for one fingerprint.
type MemoryEvidence struct {
	Fingerprint         string  `json:"fingerprint"`
	Confidence          float64 `json:"confidence"`
	SuccessCount        int     `json:"success_count"`
	FailureCount        int     `json:"failure_count"`
	PartialCount        int     `json:"partial_count"`
	RecencyWeight       float64 `json:"recency_weight"`
	SimilarContextScore float64 `json:"similar_context_score"`
	Seen                bool    `json:"seen"`
}

// PlanScoreBreakdown is the inspectable composition of a plan's score.
type PlanScoreBreakdown struct {
	Fingerprint    string  `json:"fingerprint"`
	BaseConfidence float64 `json:"base_confidence"`
	MemoryEvidence float64 `json:"memory_evidence"`
	Similarity     float64 `json:"similarity"`
	RecencyWeight  float64 `json:"recency_weight"`
	FinalScore     float64 `json:"final_score"`
}

// FailureRecord notes that an action failed and why.
type FailureRecord struct {
	Action    string    `json:"action"`
	Cause     string    `json:"cause"`
	Timestamp time.Time `json:"ts"`
}

// ActionFailureCount pairs an action with its recorded failure count.
type ActionFailureCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// Outcome is the result of executing a plan. Failures of the environment are
// values, not errors.
type Outcome struct {
	Kind           OutcomeType `json:"kind"`
	FailedAction   string      `json:"failed_action,omitempty"`
	Cause          string      `json:"cause,omitempty"`
	CompletedSteps int         `json:"completed_steps"`
}
