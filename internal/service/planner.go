package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultEpsilon      = 0.1
	DefaultReorderings  = 2
	DefaultProgressStep = 0.25

	tracerName = "github.com/Harshitk-cp/adaptive-planner/internal/service"
)

var (
	ErrGoalRequired = errors.New("goal is required")
	ErrGoalInactive = errors.New("goal is no longer active")
	ErrInvalidGoal  = errors.New("goal state is invalid")
)

// Planner runs the feedback loop: generate, score, select, execute and
// remember. Cycles are serialized so the ledger has a single writer.
type Planner struct {
	generator *PlanGenerator
	scorer    *PlanScorer
	selector  *SelectionPolicy
	executor  *Executor
	memory    *EpisodicMemory
	failures  domain.FailureMemory
	monitor   *ProgressMonitor
	sink      domain.EventSink
	reorder   *rand.Rand
	logger    *zap.Logger
	tracer    trace.Tracer

	Epsilon      float64
	Reorderings  int
	ProgressStep float64

	mu    sync.Mutex
	stats plannerCounters
}

type plannerCounters struct {
	cycles    atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	partials  atomic.Int64
}

// PlannerStats are cumulative cycle counters.
type PlannerStats struct {
	Cycles    int64 `json:"cycles"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
	Partials  int64 `json:"partials"`
}

func NewPlanner(
	generator *PlanGenerator,
	scorer *PlanScorer,
	selector *SelectionPolicy,
	executor *Executor,
	memory *EpisodicMemory,
	failures domain.FailureMemory,
	monitor *ProgressMonitor,
	reorder *rand.Rand,
	logger *zap.Logger,
) *Planner {
	return &Planner{
		generator:    generator,
		scorer:       scorer,
		selector:     selector,
		executor:     executor,
		memory:       memory,
		failures:     failures,
		monitor:      monitor,
		sink:         NewLogSink(logger),
		reorder:      reorder,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		Epsilon:      DefaultEpsilon,
		Reorderings:  DefaultReorderings,
		ProgressStep: DefaultProgressStep,
	}
}

// SetEventSink replaces the presentation sink.
func (p *Planner) SetEventSink(sink domain.EventSink) {
	p.sink = sink
}

// Stats returns the cumulative cycle counters.
func (p *Planner) Stats() PlannerStats {
	return PlannerStats{
		Cycles:    p.stats.cycles.Load(),
		Successes: p.stats.successes.Load(),
		Failures:  p.stats.failures.Load(),
		Partials:  p.stats.partials.Load(),
	}
}

// CycleInput describes one planning cycle.
type CycleInput struct {
	Goal        string
	ContextTags []string
	// Aggressive biases mutation after replanning.
	Aggressive bool
	// Sink, when set, receives this cycle's events in addition to the
	// planner's sink.
	Sink domain.EventSink
}

// CycleResult is everything one cycle produced.
type CycleResult struct {
	CycleID     uuid.UUID                   `json:"cycle_id"`
	Candidates  []domain.Plan               `json:"candidates"`
	Scores      []domain.PlanScoreBreakdown `json:"scores"`
	ChosenIndex int                         `json:"chosen_index"`
	Chosen      domain.Plan                 `json:"chosen"`
	Explored    bool                        `json:"explored"`
	Outcome     domain.Outcome              `json:"outcome"`
	Record      *domain.EpisodicRecord      `json:"record"`
}

// RunCycle performs one full planning cycle and feeds the outcome back into
// memory. Selection contract violations abort the cycle before execution.
func (p *Planner) RunCycle(ctx context.Context, in CycleInput) (*CycleResult, error) {
	if strings.TrimSpace(in.Goal) == "" {
		return nil, ErrGoalRequired
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := p.tracer.Start(ctx, "planner.cycle", trace.WithAttributes(
		attribute.String("planner.goal", in.Goal),
		attribute.Bool("planner.aggressive", in.Aggressive),
	))
	defer span.End()

	result, err := p.runCycle(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("planner.candidates", len(result.Candidates)),
		attribute.String("planner.fingerprint", result.Chosen.Fingerprint),
		attribute.Bool("planner.explored", result.Explored),
		attribute.String("planner.outcome", string(result.Outcome.Kind)),
	)
	return result, nil
}

func (p *Planner) runCycle(ctx context.Context, in CycleInput) (*CycleResult, error) {
	sink := p.sink
	if in.Sink != nil {
		sink = MultiSink{p.sink, in.Sink}
	}
	result := &CycleResult{CycleID: uuid.New()}
	emit := func(e domain.Event) {
		e.CycleID = result.CycleID
		e.Timestamp = time.Now()
		sink.Emit(ctx, e)
	}

	candidates, err := p.generator.Candidates(ctx, CandidateInput{
		Goal:          in.Goal,
		ContextTags:   in.ContextTags,
		FailureMemory: p.failures,
		Aggressive:    in.Aggressive,
		Reorderings:   p.Reorderings,
		Rand:          p.reorder,
	})
	if err != nil {
		return nil, fmt.Errorf("generate candidates: %w", err)
	}
	result.Candidates = candidates
	emit(domain.Event{Kind: domain.EventKindCandidates, Candidates: candidates})

	result.Scores = p.scorer.ScoreAll(candidates, in.ContextTags)
	for i := range result.Scores {
		emit(domain.Event{Kind: domain.EventKindScored, Score: &result.Scores[i]})
	}

	sel, err := p.selector.Select(candidates, FinalScores(result.Scores), p.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("select plan: %w", err)
	}
	result.ChosenIndex = sel.Index
	result.Chosen = sel.Plan
	result.Explored = sel.Explored
	emit(domain.Event{Kind: domain.EventKindPlanChosen, Plan: &result.Chosen, Explored: sel.Explored})

	outcome, err := p.executor.Execute(ctx, sel.Plan)
	if err != nil {
		return nil, fmt.Errorf("execute plan: %w", err)
	}
	result.Outcome = outcome
	emit(domain.Event{Kind: domain.EventKindExecuted, Outcome: &result.Outcome})

	// Recording must survive a cancelled run so partial outcomes are kept.
	recordCtx := context.WithoutCancel(ctx)
	rec, err := p.memory.Record(recordCtx, domain.OutcomeEvent{
		Plan:         sel.Plan,
		ContextTags:  in.ContextTags,
		Outcome:      outcome.Kind,
		FailedAction: outcome.FailedAction,
		FailureCause: outcome.Cause,
		Notes:        cycleNotes(sel, outcome),
	})
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	result.Record = rec

	if outcome.Kind == domain.OutcomeFailure {
		err := p.failures.RecordFailure(recordCtx, domain.FailureRecord{
			Action:    outcome.FailedAction,
			Cause:     outcome.Cause,
			Timestamp: rec.Timestamp,
		})
		if err != nil {
			return nil, fmt.Errorf("record failure: %w", err)
		}
	}

	p.count(outcome.Kind)
	p.logger.Info("planning cycle complete",
		zap.String("cycle_id", result.CycleID.String()),
		zap.String("goal", in.Goal),
		zap.Int("candidates", len(candidates)),
		zap.String("fingerprint", sel.Plan.Fingerprint),
		zap.Bool("explored", sel.Explored),
		zap.String("outcome", string(outcome.Kind)),
		zap.Float64("confidence_after", rec.ConfidenceAfter))

	return result, nil
}

func (p *Planner) count(kind domain.OutcomeType) {
	p.stats.cycles.Add(1)
	switch kind {
	case domain.OutcomeSuccess:
		p.stats.successes.Add(1)
	case domain.OutcomeFailure:
		p.stats.failures.Add(1)
	case domain.OutcomePartial:
		p.stats.partials.Add(1)
	}
}

func cycleNotes(sel Selection, outcome domain.Outcome) string {
	mode := "exploit"
	if sel.Explored {
		mode = "explore"
	}
	if outcome.Kind == domain.OutcomeFailure {
		return fmt.Sprintf("%s; failed at %s (%s)", mode, outcome.FailedAction, outcome.Cause)
	}
	return fmt.Sprintf("%s; %d steps completed", mode, outcome.CompletedSteps)
}

// ProgressIncrement converts an execution outcome into goal progress.
func (p *Planner) ProgressIncrement(o domain.Outcome) float64 {
	switch o.Kind {
	case domain.OutcomeSuccess:
		return p.ProgressStep
	case domain.OutcomePartial:
		return p.ProgressStep / 2
	}
	return 0
}

// PursueInput describes a long-horizon goal run.
type PursueInput struct {
	Goal        string
	ContextTags []string
	Checkpoints []domain.Checkpoint
	// State resumes an existing goal; nil starts a fresh one.
	State *domain.GoalState
	Sink  domain.EventSink
}

// PursueResult holds the final goal state and per-checkpoint detail.
type PursueResult struct {
	State       domain.GoalState `json:"state"`
	Cycles      []*CycleResult   `json:"cycles"`
	Evaluations []Evaluation     `json:"evaluations"`
}

// Pursue runs one cycle per checkpoint, advancing progress from each outcome
// and evaluating drift. It stops early once the goal is abandoned or
// achieved. After a replan, later cycles mutate aggressively.
func (p *Planner) Pursue(ctx context.Context, in PursueInput) (*PursueResult, error) {
	var state domain.GoalState
	if in.State != nil {
		if in.State.Terminal() {
			return nil, ErrGoalInactive
		}
		if !domain.ValidGoalStatus(string(in.State.Status)) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidGoal, in.State.Status)
		}
		if strings.TrimSpace(in.State.Goal) == "" {
			return nil, ErrGoalRequired
		}
		state = *in.State
	} else {
		if strings.TrimSpace(in.Goal) == "" {
			return nil, ErrGoalRequired
		}
		state = p.monitor.NewGoal(in.Goal)
	}

	ctx, span := p.tracer.Start(ctx, "planner.pursue", trace.WithAttributes(
		attribute.String("planner.goal", state.Goal),
		attribute.Int("planner.checkpoints", len(in.Checkpoints)),
	))
	defer span.End()

	sink := p.sink
	if in.Sink != nil {
		sink = MultiSink{p.sink, in.Sink}
	}

	result := &PursueResult{}
	for _, cp := range in.Checkpoints {
		if state.Terminal() {
			break
		}
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			break
		}

		cycle, err := p.RunCycle(ctx, CycleInput{
			Goal:        state.Goal,
			ContextTags: in.ContextTags,
			Aggressive:  state.ReplanCount() > 0,
			Sink:        in.Sink,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		result.Cycles = append(result.Cycles, cycle)

		state = p.monitor.UpdateProgress(state, p.ProgressIncrement(cycle.Outcome))
		var eval Evaluation
		state, eval = p.monitor.Evaluate(state, cp)
		result.Evaluations = append(result.Evaluations, eval)

		snapshot := state
		sink.Emit(ctx, domain.Event{
			Kind:      domain.EventKindGoalUpdated,
			CycleID:   cycle.CycleID,
			Timestamp: time.Now(),
			Goal:      &snapshot,
		})
	}

	result.State = state
	span.SetAttributes(
		attribute.String("planner.status", string(state.Status)),
		attribute.Float64("planner.progress", state.Progress),
	)
	return result, nil
}

// NewGoal exposes the monitor's initial state for callers that drive goals
// incrementally.
func (p *Planner) NewGoal(goal string) domain.GoalState {
	return p.monitor.NewGoal(goal)
}

// Memory returns the planner's episodic memory.
func (p *Planner) Memory() *EpisodicMemory {
	return p.memory
}

// Generator returns the planner's plan generator.
func (p *Planner) Generator() *PlanGenerator {
	return p.generator
}

// Scorer returns the planner's scorer.
func (p *Planner) Scorer() *PlanScorer {
	return p.scorer
}

// FailureMemory returns the planner's failure memory.
func (p *Planner) FailureMemory() domain.FailureMemory {
	return p.failures
}
