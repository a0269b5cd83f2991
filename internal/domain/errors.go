package domain

import "errors"

var (
	ErrPlanGoalEmpty     = errors.New("plan goal is required")
	ErrPlanNoSteps       = errors.New("plan must have at least one step")
	ErrInvalidDependency = errors.New("invalid dependency edge")
	ErrDependencyCycle   = errors.New("plan dependencies contain a cycle")

	// ErrOversizedEntry is yielded by a ledger for a single entry it refused
	// to buffer. Reading continues after it.
	ErrOversizedEntry = errors.New("ledger entry exceeds the size limit")
)
