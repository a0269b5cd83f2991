package domain

import "time"

// GoalStatus is the state of a long-horizon goal.
type GoalStatus string

const (
	GoalOnTrack   GoalStatus = "active-on-track"
	GoalDrifting  GoalStatus = "active-drifting"
	GoalAbandoned GoalStatus = "abandoned"
	GoalAchieved  GoalStatus = "achieved"
)

// History event names recorded on a GoalState.
const (
	EventProgressUpdated     = "progress_updated"
	EventCheckpointPassed    = "checkpoint_passed"
	EventDriftDetected       = "drift_detected"
	EventReplanningTriggered = "replanning_triggered"
	EventGoalAbandoned       = "goal_abandoned"
	EventGoalAchieved        = "goal_achieved"
)

// GoalState tracks progress toward a goal. Only the progress monitor derives
// new states; everyone else reads them.
type GoalState struct {
	Goal                    string     `json:"goal"`
	Confidence              float64    `json:"confidence"`
	Active                  bool       `json:"active"`
	Progress                float64    `json:"progress"`
	Status                  GoalStatus `json:"status"`
	LastCheckpointTimestamp time.Time  `json:"last_checkpoint_ts"`
	History                 []string   `json:"history"`
}

// Terminal reports whether the goal was abandoned or achieved. A goal that
// is no longer active is terminal whatever its status says.
func (g GoalState) Terminal() bool {
	return !g.Active || g.Status == GoalAbandoned || g.Status == GoalAchieved
}

// ValidGoalStatus reports whether s is a known GoalStatus.
func ValidGoalStatus(s string) bool {
	switch GoalStatus(s) {
	case GoalOnTrack, GoalDrifting, GoalAbandoned, GoalAchieved:
		return true
	}
	return false
}

// ReplanCount returns how many times replanning was triggered.
func (g GoalState) ReplanCount() int {
	n := 0
	for _, h := range g.History {
		if h == EventReplanningTriggered {
			n++
		}
	}
	return n
}

// Checkpoint is an externally supplied progress expectation.
type Checkpoint struct {
	Description      string  `json:"description"`
	ExpectedProgress float64 `json:"expected_progress"`
}
