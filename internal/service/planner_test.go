package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/Harshitk-cp/adaptive-planner/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type plannerFixture struct {
	planner  *Planner
	memory   *EpisodicMemory
	failures *FailureMemory
	executor *Executor
	clock    *fixedClock
	path     string
}

func newPlannerFixture(t *testing.T, seed int64, failureRate float64) *plannerFixture {
	t.Helper()
	logger := zap.NewNop()
	clock := newTestClock()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")

	ledger, err := store.NewJSONLLedger(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	mem := NewEpisodicMemory(ledger, logger)
	mem.Now = clock.Now

	rs := NewRandomSources(&seed)
	classifier := NewFailureClassifier(nil)
	executor := NewExecutor(rs.Simulation, classifier, logger)
	executor.StepFailureRate = failureRate
	failures := NewFailureMemory()
	monitor := NewProgressMonitor(logger)
	monitor.Now = clock.Now

	p := NewPlanner(
		NewPlanGenerator(nil, classifier, logger),
		NewPlanScorer(mem, DefaultScorerWeights),
		NewSelectionPolicy(rs.Exploration),
		executor,
		mem,
		failures,
		monitor,
		rs.Reordering,
		logger,
	)
	p.Epsilon = 0
	p.Reorderings = 0

	return &plannerFixture{planner: p, memory: mem, failures: failures, executor: executor, clock: clock, path: path}
}

func TestPlanner_RunCycleRecordsOutcome(t *testing.T) {
	ctx := context.Background()
	f := newPlannerFixture(t, 1, 0)
	sink := &CollectingSink{}

	res, err := f.planner.RunCycle(ctx, CycleInput{Goal: "fix auth bug", ContextTags: []string{"auth"}, Sink: sink})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome.Kind)
	require.NotNil(t, res.Record)
	assert.InDelta(t, 0.65, res.Record.ConfidenceAfter, 1e-9)
	assert.Equal(t, res.Chosen.Fingerprint, res.Record.Fingerprint)
	assert.Len(t, res.Scores, len(res.Candidates))

	var kinds []domain.EventKind
	for _, e := range sink.Events() {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, res.CycleID, e.CycleID)
	}
	assert.Equal(t, []domain.EventKind{
		domain.EventKindCandidates,
		domain.EventKindScored,
		domain.EventKindPlanChosen,
		domain.EventKindExecuted,
	}, kinds)

	stats := f.planner.Stats()
	assert.EqualValues(t, 1, stats.Cycles)
	assert.EqualValues(t, 1, stats.Successes)
}

func TestPlanner_FailureDrivesMutation(t *testing.T) {
	ctx := context.Background()
	f := newPlannerFixture(t, 1, 1)
	in := CycleInput{Goal: "fix auth bug", ContextTags: []string{"auth"}}

	first, err := f.planner.RunCycle(ctx, in)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeFailure, first.Outcome.Kind)
	assert.Equal(t, "check_logs", first.Outcome.FailedAction)

	n, err := f.failures.FailureCount(ctx, "check_logs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second, err := f.planner.RunCycle(ctx, in)
	require.NoError(t, err)
	require.Len(t, second.Candidates, 2)
	assert.Equal(t, 1, second.ChosenIndex)
	assert.Equal(t, "review_check_logs", second.Chosen.Steps[0])
	assert.True(t, second.Chosen.HasConstraint(ConstraintAvoid+"check_logs"))
	assert.Greater(t, second.Scores[1].FinalScore, second.Scores[0].FinalScore)
}

func TestPlanner_LedgerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	f := newPlannerFixture(t, 3, 0.5)

	for i := 0; i < 5; i++ {
		_, err := f.planner.RunCycle(ctx, CycleInput{Goal: "fix auth bug", ContextTags: []string{"auth"}})
		require.NoError(t, err)
	}

	ledger, err := store.NewJSONLLedger(f.path)
	require.NoError(t, err)
	defer ledger.Close()
	replayed := NewEpisodicMemory(ledger, zap.NewNop())
	replayed.Now = f.clock.Now

	result, err := replayed.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Loaded)

	for _, want := range f.memory.Snapshot() {
		got, ok := replayed.Aggregate(want.Fingerprint)
		require.True(t, ok)
		assert.InDelta(t, want.Confidence, got.Confidence, 1e-12)
		assert.Equal(t, want.Attempts(), got.Attempts())
	}

	rebuilt := NewFailureMemory()
	rebuilt.Seed(result.Failures)
	want, err := f.failures.TopFailures(ctx, 0)
	require.NoError(t, err)
	got, err := rebuilt.TopFailures(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPlanner_SeedReproducesRun(t *testing.T) {
	ctx := context.Background()

	run := func() []string {
		f := newPlannerFixture(t, 99, 0.3)
		f.planner.Epsilon = 0.3
		f.planner.Reorderings = 2

		var trace []string
		for i := 0; i < 8; i++ {
			res, err := f.planner.RunCycle(ctx, CycleInput{Goal: "ship release", ContextTags: []string{"ci"}})
			require.NoError(t, err)
			trace = append(trace, res.Chosen.Fingerprint+"/"+string(res.Outcome.Kind)+"/"+res.Outcome.FailedAction)
		}
		return trace
	}

	assert.Equal(t, run(), run())
}

func TestPlanner_CancelledCycleIsRecordedAsPartial(t *testing.T) {
	f := newPlannerFixture(t, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.planner.RunCycle(ctx, CycleInput{Goal: "fix auth bug"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePartial, res.Outcome.Kind)

	agg, ok := f.memory.Aggregate(res.Chosen.Fingerprint)
	require.True(t, ok)
	assert.Equal(t, 1, agg.PartialCount)
}

func TestPlanner_RunCycleRequiresGoal(t *testing.T) {
	f := newPlannerFixture(t, 1, 0)
	_, err := f.planner.RunCycle(context.Background(), CycleInput{Goal: "  "})
	assert.ErrorIs(t, err, ErrGoalRequired)
}

func TestPlanner_PursueAchievesGoal(t *testing.T) {
	f := newPlannerFixture(t, 1, 0)
	checkpoints := []domain.Checkpoint{
		{Description: "q1", ExpectedProgress: 0.25},
		{Description: "q2", ExpectedProgress: 0.5},
		{Description: "q3", ExpectedProgress: 0.75},
		{Description: "q4", ExpectedProgress: 1.0},
		{Description: "extra", ExpectedProgress: 1.0},
	}

	res, err := f.planner.Pursue(context.Background(), PursueInput{Goal: "fix auth bug", Checkpoints: checkpoints})
	require.NoError(t, err)
	assert.Len(t, res.Cycles, 4)
	assert.Equal(t, domain.GoalAchieved, res.State.Status)
	assert.True(t, res.State.Active)
	assert.InDelta(t, 1.0, res.State.Progress, 1e-9)
	assert.Zero(t, res.State.ReplanCount())
	assert.True(t, res.Evaluations[3].Achieved)
}

func TestPursue_FailingEnvironmentAbandons(t *testing.T) {
	f := newPlannerFixture(t, 1, 1)
	checkpoints := make([]domain.Checkpoint, 8)
	for i := range checkpoints {
		checkpoints[i] = domain.Checkpoint{Description: "cp", ExpectedProgress: 0.5}
	}
	sink := &CollectingSink{}

	res, err := f.planner.Pursue(context.Background(), PursueInput{Goal: "fix auth bug", Checkpoints: checkpoints, Sink: sink})
	require.NoError(t, err)

	maxReplans := NewProgressMonitor(zap.NewNop()).MaxReplans()
	assert.Len(t, res.Cycles, maxReplans)
	assert.Equal(t, domain.GoalAbandoned, res.State.Status)
	assert.False(t, res.State.Active)
	assert.Equal(t, maxReplans, res.State.ReplanCount())

	// Cycles after the first replan mutate aggressively; every cycle past
	// the first sees a failure-aware candidate.
	for _, c := range res.Cycles[1:] {
		assert.GreaterOrEqual(t, len(c.Candidates), 2)
	}

	goalEvents := 0
	for _, e := range sink.Events() {
		if e.Kind == domain.EventKindGoalUpdated {
			goalEvents++
		}
	}
	assert.Equal(t, maxReplans, goalEvents)

	_, err = f.planner.Pursue(context.Background(), PursueInput{State: &res.State, Checkpoints: checkpoints})
	assert.ErrorIs(t, err, ErrGoalInactive)
}

func TestPursue_ResumedStateValidation(t *testing.T) {
	checkpoints := []domain.Checkpoint{{Description: "cp", ExpectedProgress: 0.5}}

	tests := []struct {
		name  string
		state domain.GoalState
		want  error
	}{
		{"inactive with on-track status", domain.GoalState{Goal: "fix auth bug", Confidence: 0.2, Status: domain.GoalOnTrack}, ErrGoalInactive},
		{"inactive without status", domain.GoalState{Goal: "fix auth bug", Confidence: 0.2}, ErrGoalInactive},
		{"active but abandoned", domain.GoalState{Goal: "fix auth bug", Active: true, Status: domain.GoalAbandoned}, ErrGoalInactive},
		{"active without status", domain.GoalState{Goal: "fix auth bug", Active: true, Confidence: 0.7}, ErrInvalidGoal},
		{"active with unknown status", domain.GoalState{Goal: "fix auth bug", Active: true, Confidence: 0.7, Status: "paused"}, ErrInvalidGoal},
		{"active without goal", domain.GoalState{Active: true, Confidence: 0.7, Status: domain.GoalOnTrack}, ErrGoalRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPlannerFixture(t, 1, 0)
			state := tt.state
			res, err := f.planner.Pursue(context.Background(), PursueInput{State: &state, Checkpoints: checkpoints})
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
			assert.Zero(t, f.planner.Stats().Cycles)
		})
	}
}

func TestPlanner_Report(t *testing.T) {
	ctx := context.Background()
	f := newPlannerFixture(t, 1, 1)

	for i := 0; i < 3; i++ {
		_, err := f.planner.RunCycle(ctx, CycleInput{Goal: "fix auth bug"})
		require.NoError(t, err)
	}

	report, err := f.planner.Report(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Plans)
	require.NotEmpty(t, report.TopFailures)
	assert.EqualValues(t, 3, report.Stats.Cycles)
	assert.EqualValues(t, 3, report.Stats.Failures)

	total := 0
	for _, tf := range report.TopFailures {
		total += tf.Count
	}
	assert.Equal(t, 3, total)

	require.Len(t, report.RecentFailures, 3)
	for i := 1; i < len(report.RecentFailures); i++ {
		assert.False(t, report.RecentFailures[i].Timestamp.Before(report.RecentFailures[i-1].Timestamp))
	}

	short, err := f.planner.Report(ctx, 1)
	require.NoError(t, err)
	require.Len(t, short.RecentFailures, 1)
	assert.Equal(t, report.RecentFailures[2], short.RecentFailures[0])
}

func TestLogSink_DoesNotPanicOnSparseEvents(t *testing.T) {
	sink := MultiSink{NewLogSink(zap.NewNop()), nil, &CollectingSink{}}
	for _, k := range []domain.EventKind{
		domain.EventKindCandidates, domain.EventKindScored, domain.EventKindPlanChosen,
		domain.EventKindExecuted, domain.EventKindGoalUpdated,
	} {
		sink.Emit(context.Background(), domain.Event{Kind: k})
	}
	assert.Len(t, sink[2].(*CollectingSink).Events(), 5)
}
