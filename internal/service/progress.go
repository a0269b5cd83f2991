package service

import (
	"fmt"
	"math"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultReplanningThreshold   = 0.15
	DefaultConfidenceFloor       = 0.3
	DefaultReplanStep            = 0.1
	DefaultInitialGoalConfidence = 0.7

	// tolerance absorbs float noise in threshold comparisons.
	tolerance = 1e-9
)

// Evaluation reports what a checkpoint evaluation decided.
type Evaluation struct {
	Shortfall float64 `json:"shortfall"`
	Drift     bool    `json:"drift"`
	Replanned bool    `json:"replanned"`
	Abandoned bool    `json:"abandoned"`
	Achieved  bool    `json:"achieved"`
}

// ProgressMonitor is the only component that derives new GoalStates. Each
// transition takes a state and returns the next one; the input is not
// modified.
type ProgressMonitor struct {
	logger *zap.Logger

	ReplanningThreshold float64
	ConfidenceFloor     float64
	ReplanStep          float64
	InitialConfidence   float64
	Now                 func() time.Time
}

func NewProgressMonitor(logger *zap.Logger) *ProgressMonitor {
	return &ProgressMonitor{
		logger:              logger,
		ReplanningThreshold: DefaultReplanningThreshold,
		ConfidenceFloor:     DefaultConfidenceFloor,
		ReplanStep:          DefaultReplanStep,
		InitialConfidence:   DefaultInitialGoalConfidence,
		Now:                 time.Now,
	}
}

// NewGoal returns a fresh active GoalState.
func (m *ProgressMonitor) NewGoal(goal string) domain.GoalState {
	return domain.GoalState{
		Goal:                    goal,
		Confidence:              m.InitialConfidence,
		Active:                  true,
		Status:                  domain.GoalOnTrack,
		LastCheckpointTimestamp: m.Now(),
		History:                 []string{},
	}
}

// UpdateProgress advances progress by increment, capped at 1.0. Reaching 1.0
// marks the goal achieved regardless of confidence.
func (m *ProgressMonitor) UpdateProgress(state domain.GoalState, increment float64) domain.GoalState {
	next := cloneGoal(state)
	if state.Terminal() {
		return next
	}
	if increment < 0 {
		increment = 0
	}

	next.Progress = math.Min(1.0, round9(next.Progress+increment))
	next.LastCheckpointTimestamp = m.Now()
	next.History = append(next.History, fmt.Sprintf("%s:%.2f", domain.EventProgressUpdated, next.Progress))

	if next.Progress >= 1.0 {
		next.Status = domain.GoalAchieved
		next.History = append(next.History, domain.EventGoalAchieved)
		m.logger.Info("goal achieved", zap.String("goal", next.Goal))
	}
	return next
}

// Evaluate compares progress with checkpoint. A shortfall above the
// replanning threshold marks the goal drifting and replans immediately.
func (m *ProgressMonitor) Evaluate(state domain.GoalState, checkpoint domain.Checkpoint) (domain.GoalState, Evaluation) {
	next := cloneGoal(state)
	eval := Evaluation{Shortfall: round9(checkpoint.ExpectedProgress - state.Progress)}

	if state.Status == domain.GoalAchieved || state.Progress >= 1.0 {
		eval.Achieved = true
		return next, eval
	}
	if state.Terminal() {
		eval.Abandoned = state.Status == domain.GoalAbandoned
		return next, eval
	}

	if eval.Shortfall > m.ReplanningThreshold+tolerance {
		eval.Drift = true
		next.Status = domain.GoalDrifting
		next.History = append(next.History, fmt.Sprintf("%s:%.2f", domain.EventDriftDetected, eval.Shortfall))

		m.logger.Info("goal drifting",
			zap.String("goal", next.Goal),
			zap.String("checkpoint", checkpoint.Description),
			zap.Float64("expected", checkpoint.ExpectedProgress),
			zap.Float64("progress", next.Progress))

		next = m.Replan(next)
		eval.Replanned = true
		eval.Abandoned = next.Status == domain.GoalAbandoned
		return next, eval
	}

	next.Status = domain.GoalOnTrack
	next.LastCheckpointTimestamp = m.Now()
	next.History = append(next.History, fmt.Sprintf("%s:%s", domain.EventCheckpointPassed, checkpoint.Description))
	return next, eval
}

// Replan lowers confidence by ReplanStep. Reaching the confidence floor
// abandons the goal permanently; otherwise it returns to on-track with a
// replanning_triggered event for the mutator to consult.
func (m *ProgressMonitor) Replan(state domain.GoalState) domain.GoalState {
	next := cloneGoal(state)
	if state.Terminal() {
		return next
	}

	next.Confidence = round9(next.Confidence - m.ReplanStep)
	next.History = append(next.History, domain.EventReplanningTriggered)

	if next.Confidence <= m.ConfidenceFloor+tolerance {
		next.Active = false
		next.Status = domain.GoalAbandoned
		next.History = append(next.History, domain.EventGoalAbandoned)
		m.logger.Warn("goal abandoned",
			zap.String("goal", next.Goal),
			zap.Float64("confidence", next.Confidence),
			zap.Float64("floor", m.ConfidenceFloor))
		return next
	}

	next.Status = domain.GoalOnTrack
	m.logger.Debug("replanning triggered",
		zap.String("goal", next.Goal),
		zap.Float64("confidence", next.Confidence))
	return next
}

// MaxReplans is the number of Replan calls that take a fresh goal to
// abandonment: ceil((initial - floor) / step).
func (m *ProgressMonitor) MaxReplans() int {
	if m.ReplanStep <= 0 {
		return 0
	}
	n := int(math.Ceil(round9((m.InitialConfidence - m.ConfidenceFloor) / m.ReplanStep)))
	if n < 1 {
		return 1
	}
	return n
}

func cloneGoal(s domain.GoalState) domain.GoalState {
	c := s
	c.History = append([]string{}, s.History...)
	return c
}

func round9(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
