package service

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"go.uber.org/zap"
)

// LogSink writes presentation events as structured log entries.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, e domain.Event) {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("cycle_id", e.CycleID.String()),
	}

	switch e.Kind {
	case domain.EventKindCandidates:
		fields = append(fields, zap.Int("candidates", len(e.Candidates)))
	case domain.EventKindScored:
		if e.Score != nil {
			fields = append(fields,
				zap.String("fingerprint", e.Score.Fingerprint),
				zap.Float64("base_confidence", e.Score.BaseConfidence),
				zap.Float64("memory_evidence", e.Score.MemoryEvidence),
				zap.Float64("similarity", e.Score.Similarity),
				zap.Float64("recency_weight", e.Score.RecencyWeight),
				zap.Float64("final_score", e.Score.FinalScore))
		}
	case domain.EventKindPlanChosen:
		if e.Plan != nil {
			fields = append(fields,
				zap.String("fingerprint", e.Plan.Fingerprint),
				zap.Strings("steps", e.Plan.Steps),
				zap.Bool("explored", e.Explored))
		}
	case domain.EventKindExecuted:
		if e.Outcome != nil {
			fields = append(fields,
				zap.String("outcome", string(e.Outcome.Kind)),
				zap.String("failed_action", e.Outcome.FailedAction),
				zap.String("cause", e.Outcome.Cause))
		}
	case domain.EventKindGoalUpdated:
		if e.Goal != nil {
			fields = append(fields,
				zap.String("goal", e.Goal.Goal),
				zap.String("status", string(e.Goal.Status)),
				zap.Float64("progress", e.Goal.Progress),
				zap.Float64("confidence", e.Goal.Confidence))
		}
	}

	s.logger.Info("planner event", fields...)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []domain.EventSink

func (m MultiSink) Emit(ctx context.Context, e domain.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// CollectingSink buffers events in memory.
type CollectingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *CollectingSink) Emit(_ context.Context, e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the buffered events.
func (c *CollectingSink) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}
