package domain

// TopologicalOrder returns step indices in an order that respects every
// dependency edge. Among ready steps the lowest index runs first, so a plan
// with a linear chain executes in declaration order.
func (p Plan) TopologicalOrder() ([]int, error) {
	return p.orderWith(func(ready []int) int { return 0 })
}

// RandomTopologicalOrder is like TopologicalOrder but lets pick choose which
// ready step comes next. pick receives the number of ready steps and returns
// an index into them.
func (p Plan) RandomTopologicalOrder(pick func(n int) int) ([]int, error) {
	return p.orderWith(func(ready []int) int { return pick(len(ready)) })
}

func (p Plan) orderWith(choose func(ready []int) int) ([]int, error) {
	n := len(p.Steps)
	indegree := make([]int, n)
	next := make([][]int, n)
	for _, d := range p.Dependencies {
		indegree[d.To]++
		next[d.From] = append(next[d.From], d.To)
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		k := choose(ready)
		if k < 0 || k >= len(ready) {
			k = 0
		}
		cur := ready[k]
		ready = append(ready[:k], ready[k+1:]...)
		order = append(order, cur)

		for _, to := range next[cur] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = insertSorted(ready, to)
			}
		}
	}

	if len(order) != n {
		return nil, ErrDependencyCycle
	}
	return order, nil
}

func insertSorted(s []int, v int) []int {
	i := 0
	for i < len(s) && s[i] < v {
		i++
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Reordered returns a new plan whose steps follow order. Dependency edges are
// remapped to the new positions, so the structure is preserved while the
// fingerprint reflects the new sequence.
func (p Plan) Reordered(order []int) (Plan, error) {
	pos := make([]int, len(order))
	steps := make([]string, len(order))
	for newIdx, oldIdx := range order {
		pos[oldIdx] = newIdx
		steps[newIdx] = p.Steps[oldIdx]
	}
	deps := make([]Dependency, 0, len(p.Dependencies))
	for _, d := range p.Dependencies {
		deps = append(deps, Dependency{From: pos[d.From], To: pos[d.To]})
	}
	return NewPlan(p.Goal, p.ContextTags, steps, deps, p.Constraints)
}
