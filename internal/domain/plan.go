package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ReviewPrefix marks the safer variant of an action produced by mutation.
const ReviewPrefix = "review_"

// Dependency is a directed edge meaning step To requires step From to be complete.
type Dependency struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Plan is an ordered sequence of atomic actions toward a goal.
// Plans are values: once fingerprinted they are never modified, and every
// mutation produces a new Plan through NewPlan.
type Plan struct {
	Goal         string       `json:"goal"`
	ContextTags  []string     `json:"context_tags"`
	Steps        []string     `json:"steps"`
	Dependencies []Dependency `json:"dependencies"`
	Constraints  []string     `json:"constraints,omitempty"`
	Fingerprint  string       `json:"fingerprint"`
}

// NewPlan builds a Plan and computes its fingerprint. Slices are copied so the
// caller may reuse its inputs.
func NewPlan(goal string, contextTags, steps []string, deps []Dependency, constraints []string) (Plan, error) {
	if strings.TrimSpace(goal) == "" {
		return Plan{}, ErrPlanGoalEmpty
	}
	if len(steps) == 0 {
		return Plan{}, ErrPlanNoSteps
	}
	for _, d := range deps {
		if d.From < 0 || d.To < 0 || d.From >= len(steps) || d.To >= len(steps) || d.From == d.To {
			return Plan{}, fmt.Errorf("%w: %d->%d", ErrInvalidDependency, d.From, d.To)
		}
	}

	p := Plan{
		Goal:         goal,
		ContextTags:  NormalizeTags(contextTags),
		Steps:        append([]string(nil), steps...),
		Dependencies: append([]Dependency(nil), deps...),
		Constraints:  append([]string(nil), constraints...),
	}
	p.Fingerprint = Fingerprint(p.Goal, p.Steps, p.Dependencies)
	return p, nil
}

// LinearDependencies returns the chain 0->1, 1->2, ... for n steps.
func LinearDependencies(n int) []Dependency {
	if n < 2 {
		return nil
	}
	deps := make([]Dependency, 0, n-1)
	for i := 1; i < n; i++ {
		deps = append(deps, Dependency{From: i - 1, To: i})
	}
	return deps
}

// HasConstraint reports whether c is in the plan's constraint set.
func (p Plan) HasConstraint(c string) bool {
	for _, existing := range p.Constraints {
		if existing == c {
			return true
		}
	}
	return false
}

// NormalizeStep lowercases and collapses whitespace so phrasing differences
// do not change plan identity.
func NormalizeStep(step string) string {
	return strings.Join(strings.Fields(strings.ToLower(step)), " ")
}

// NormalizeTags returns a sorted, de-duplicated, normalized copy of tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeStep(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Fingerprint digests the semantic content of a plan: its goal, its
// normalized steps in order and its dependency structure.
func Fingerprint(goal string, steps []string, deps []Dependency) string {
	edges := append([]Dependency(nil), deps...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	var b strings.Builder
	b.WriteString("goal:")
	b.WriteString(NormalizeStep(goal))
	b.WriteByte('\n')
	for i, s := range steps {
		fmt.Fprintf(&b, "step:%d:%s\n", i, NormalizeStep(s))
	}
	prev := Dependency{From: -1, To: -1}
	for _, e := range edges {
		if e == prev {
			continue
		}
		fmt.Fprintf(&b, "dep:%d>%d\n", e.From, e.To)
		prev = e
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
