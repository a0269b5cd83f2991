package bootstrap

import (
	"fmt"

	"github.com/Harshitk-cp/adaptive-planner/internal/config"
	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/Harshitk-cp/adaptive-planner/internal/service"
)

// loadPlaybook returns nil slices when path is empty so the built-in
// templates and rules apply.
func loadPlaybook(path string) ([]service.PlanTemplate, []service.FailureRule, error) {
	if path == "" {
		return nil, nil, nil
	}
	pb, err := config.LoadPlaybook(path)
	if err != nil {
		return nil, nil, err
	}
	return FromPlaybook(pb)
}

// FromPlaybook converts a validated playbook and rejects templates whose
// dependencies contain a cycle.
func FromPlaybook(pb *config.Playbook) ([]service.PlanTemplate, []service.FailureRule, error) {
	templates := make([]service.PlanTemplate, 0, len(pb.Templates))
	for _, t := range pb.Templates {
		deps := make([]domain.Dependency, 0, len(t.Dependencies))
		for _, d := range t.Dependencies {
			deps = append(deps, domain.Dependency{From: d[0], To: d[1]})
		}

		probe := deps
		if len(probe) == 0 {
			probe = domain.LinearDependencies(len(t.Steps))
		}
		plan, err := domain.NewPlan(t.Name, nil, t.Steps, probe, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: template %q: %v", config.ErrInvalidPlaybook, t.Name, err)
		}
		if _, err := plan.TopologicalOrder(); err != nil {
			return nil, nil, fmt.Errorf("%w: template %q: %v", config.ErrInvalidPlaybook, t.Name, err)
		}

		templates = append(templates, service.PlanTemplate{
			Name:         t.Name,
			Keywords:     t.Keywords,
			Steps:        t.Steps,
			Dependencies: deps,
		})
	}

	rules := make([]service.FailureRule, 0, len(pb.FailureRules))
	for _, r := range pb.FailureRules {
		rules = append(rules, service.FailureRule{Substring: r.Substring, Cause: r.Cause})
	}
	return templates, rules, nil
}
