package service

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultStepFailureRate     = 0.2
	DefaultReviewFailureFactor = 0.5
)

// Executor runs plans against a seedable simulated environment.
type Executor struct {
	rng        *rand.Rand
	classifier *FailureClassifier
	logger     *zap.Logger

	StepFailureRate float64
	// ReviewFailureFactor scales the failure rate of review_ steps.
	ReviewFailureFactor float64
}

func NewExecutor(rng *rand.Rand, classifier *FailureClassifier, logger *zap.Logger) *Executor {
	if classifier == nil {
		classifier = NewFailureClassifier(nil)
	}
	return &Executor{
		rng:                 rng,
		classifier:          classifier,
		logger:              logger,
		StepFailureRate:     DefaultStepFailureRate,
		ReviewFailureFactor: DefaultReviewFailureFactor,
	}
}

// Execute walks the plan in dependency order, drawing once per step against
// the failure rate. The first drawn failure stops the run and is classified.
// If ctx is cancelled before the run completes the outcome is partial.
func (e *Executor) Execute(ctx context.Context, plan domain.Plan) (domain.Outcome, error) {
	order, err := plan.TopologicalOrder()
	if err != nil {
		return domain.Outcome{}, err
	}

	for done, idx := range order {
		if ctx.Err() != nil {
			e.logger.Debug("execution truncated",
				zap.String("fingerprint", plan.Fingerprint),
				zap.Int("completed_steps", done))
			return domain.Outcome{Kind: domain.OutcomePartial, CompletedSteps: done}, nil
		}

		step := plan.Steps[idx]
		if e.rng.Float64() < e.failureRate(step) {
			cause := e.classifier.Classify(step)
			e.logger.Debug("step failed",
				zap.String("fingerprint", plan.Fingerprint),
				zap.String("action", step),
				zap.String("cause", cause))
			return domain.Outcome{
				Kind:           domain.OutcomeFailure,
				FailedAction:   step,
				Cause:          cause,
				CompletedSteps: done,
			}, nil
		}
	}

	return domain.Outcome{Kind: domain.OutcomeSuccess, CompletedSteps: len(order)}, nil
}

func (e *Executor) failureRate(step string) float64 {
	rate := clamp01(e.StepFailureRate)
	if strings.HasPrefix(step, domain.ReviewPrefix) {
		rate *= clamp01(e.ReviewFailureFactor)
	}
	return rate
}
