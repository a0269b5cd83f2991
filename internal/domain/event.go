package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind names a presentation event.
type EventKind string

const (
	EventKindCandidates  EventKind = "candidates_generated"
	EventKindScored      EventKind = "plan_scored"
	EventKindPlanChosen  EventKind = "plan_chosen"
	EventKindExecuted    EventKind = "execution_outcome"
	EventKindGoalUpdated EventKind = "goal_state"
)

// Event is a plain structured notification for the presentation layer.
// Exactly one payload field is set, matching Kind.
type Event struct {
	Kind      EventKind `json:"kind"`
	CycleID   uuid.UUID `json:"cycle_id"`
	Timestamp time.Time `json:"ts"`

	Candidates []Plan              `json:"candidates,omitempty"`
	Score      *PlanScoreBreakdown `json:"score,omitempty"`
	Plan       *Plan               `json:"plan,omitempty"`
	Explored   bool                `json:"explored,omitempty"`
	Outcome    *Outcome            `json:"outcome,omitempty"`
	Goal       *GoalState          `json:"goal,omitempty"`
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(e Event)

func (f EventSinkFunc) Emit(_ context.Context, e Event) { f(e) }
