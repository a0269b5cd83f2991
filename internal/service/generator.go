package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"go.uber.org/zap"
)

// Constraint prefixes attached to mutated plans.
const (
	ConstraintAvoid      = "avoid:"
	ConstraintAvoidCause = "avoid_cause:"
)

// PlanTemplate is a goal-keyed step sequence. Empty Dependencies means a
// linear chain.
type PlanTemplate struct {
	Name         string              `json:"name" yaml:"name"`
	Keywords     []string            `json:"keywords" yaml:"keywords"`
	Steps        []string            `json:"steps" yaml:"steps"`
	Dependencies []domain.Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// DefaultTemplates are matched in order against the lowercased goal.
var DefaultTemplates = []PlanTemplate{
	{
		Name:     "auth_bugfix",
		Keywords: []string{"auth", "login"},
		Steps:    []string{"check_logs", "fix_auth_issue", "deploy_fix", "run_tests"},
	},
	{
		Name:     "release",
		Keywords: []string{"release", "ship", "deploy"},
		Steps:    []string{"build_artifact", "run_unit_tests", "run_lint", "package_release", "deploy_release"},
		Dependencies: []domain.Dependency{
			{From: 0, To: 1}, {From: 0, To: 2}, {From: 1, To: 3}, {From: 2, To: 3}, {From: 3, To: 4},
		},
	},
	{
		Name:     "migration",
		Keywords: []string{"migrat", "schema"},
		Steps:    []string{"snapshot_data", "write_migration", "dry_run_migration", "apply_migration", "verify_data"},
	},
	{
		Name:     "bugfix",
		Keywords: []string{"bug", "fix", "error", "crash"},
		Steps:    []string{"check_logs", "reproduce_issue", "apply_fix", "run_tests", "deploy_fix"},
	},
}

// GenericTemplate is used when no template keyword matches.
var GenericTemplate = PlanTemplate{
	Name:  "generic",
	Steps: []string{"analyze_goal", "gather_context", "execute_core_task", "verify_result"},
}

// PlanGenerator produces baseline plans and failure-aware variants.
type PlanGenerator struct {
	templates  []PlanTemplate
	classifier *FailureClassifier
	logger     *zap.Logger
}

func NewPlanGenerator(templates []PlanTemplate, classifier *FailureClassifier, logger *zap.Logger) *PlanGenerator {
	if len(templates) == 0 {
		templates = DefaultTemplates
	}
	if classifier == nil {
		classifier = NewFailureClassifier(nil)
	}
	return &PlanGenerator{
		templates:  append([]PlanTemplate(nil), templates...),
		classifier: classifier,
		logger:     logger,
	}
}

// Classifier returns the classifier used for aggressive mutation.
func (g *PlanGenerator) Classifier() *FailureClassifier {
	return g.classifier
}

// Template returns the template Generate would use for goal.
func (g *PlanGenerator) Template(goal string) PlanTemplate {
	lower := strings.ToLower(goal)
	for _, t := range g.templates {
		for _, kw := range t.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return t
			}
		}
	}
	return GenericTemplate
}

// Generate produces the canonical baseline plan for goal.
func (g *PlanGenerator) Generate(goal string, contextTags []string) (domain.Plan, error) {
	t := g.Template(goal)
	deps := t.Dependencies
	if len(deps) == 0 {
		deps = domain.LinearDependencies(len(t.Steps))
	}
	plan, err := domain.NewPlan(goal, contextTags, t.Steps, deps, nil)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("template %s: %w", t.Name, err)
	}
	return plan, nil
}

// MutateOptions tunes Mutate.
type MutateOptions struct {
	// Aggressive also rewrites steps whose failure cause category has
	// already been seen, even if the exact step never failed.
	Aggressive bool
}

// Mutate returns a new plan in which every step with a recorded failure is
// replaced by its review_ variant and an avoid:<action> constraint is added.
// Steps without failures pass through unchanged.
func (g *PlanGenerator) Mutate(ctx context.Context, plan domain.Plan, fm domain.FailureMemory, opts MutateOptions) (domain.Plan, error) {
	steps := make([]string, len(plan.Steps))
	constraints := append([]string(nil), plan.Constraints...)
	addConstraint := func(c string) {
		for _, existing := range constraints {
			if existing == c {
				return
			}
		}
		constraints = append(constraints, c)
	}

	for i, step := range plan.Steps {
		steps[i] = step

		count, err := fm.FailureCount(ctx, step)
		if err != nil {
			return domain.Plan{}, fmt.Errorf("failure count for %q: %w", step, err)
		}
		if count > 0 {
			steps[i] = safeVariant(step)
			addConstraint(ConstraintAvoid + step)
			continue
		}

		if !opts.Aggressive {
			continue
		}
		cause := g.classifier.Classify(step)
		if cause == CauseUnknown {
			continue
		}
		causeCount, err := fm.CauseCount(ctx, cause)
		if err != nil {
			return domain.Plan{}, fmt.Errorf("cause count for %q: %w", cause, err)
		}
		if causeCount > 0 {
			steps[i] = safeVariant(step)
			addConstraint(ConstraintAvoid + step)
			addConstraint(ConstraintAvoidCause + cause)
		}
	}

	mutated, err := domain.NewPlan(plan.Goal, plan.ContextTags, steps, plan.Dependencies, constraints)
	if err != nil {
		return domain.Plan{}, err
	}

	if mutated.Fingerprint != plan.Fingerprint {
		g.logger.Debug("plan mutated",
			zap.String("from", plan.Fingerprint),
			zap.String("to", mutated.Fingerprint),
			zap.Strings("constraints", mutated.Constraints),
			zap.Bool("aggressive", opts.Aggressive))
	}
	return mutated, nil
}

func safeVariant(step string) string {
	if strings.HasPrefix(step, domain.ReviewPrefix) {
		return step
	}
	return domain.ReviewPrefix + step
}

// CandidateInput describes one candidate generation request.
type CandidateInput struct {
	Goal          string
	ContextTags   []string
	FailureMemory domain.FailureMemory
	Aggressive    bool
	// Reorderings is the number of randomized dependency-respecting
	// reorderings to attempt. Ignored when Rand is nil.
	Reorderings int
	Rand        *rand.Rand
}

// Candidates returns a non-empty, fingerprint-distinct candidate set: the
// baseline, its failure-aware mutations and random reorderings.
func (g *PlanGenerator) Candidates(ctx context.Context, in CandidateInput) ([]domain.Plan, error) {
	baseline, err := g.Generate(in.Goal, in.ContextTags)
	if err != nil {
		return nil, err
	}

	candidates := []domain.Plan{baseline}
	seen := map[string]bool{baseline.Fingerprint: true}
	add := func(p domain.Plan) {
		if !seen[p.Fingerprint] {
			seen[p.Fingerprint] = true
			candidates = append(candidates, p)
		}
	}

	if in.FailureMemory != nil {
		mutated, err := g.Mutate(ctx, baseline, in.FailureMemory, MutateOptions{})
		if err != nil {
			return nil, err
		}
		add(mutated)

		if in.Aggressive {
			aggressive, err := g.Mutate(ctx, baseline, in.FailureMemory, MutateOptions{Aggressive: true})
			if err != nil {
				return nil, err
			}
			add(aggressive)
		}
	}

	if in.Rand != nil {
		sources := append([]domain.Plan(nil), candidates...)
		for i := 0; i < in.Reorderings; i++ {
			src := sources[in.Rand.IntN(len(sources))]
			order, err := src.RandomTopologicalOrder(in.Rand.IntN)
			if err != nil {
				return nil, err
			}
			reordered, err := src.Reordered(order)
			if err != nil {
				return nil, err
			}
			add(reordered)
		}
	}

	return candidates, nil
}
