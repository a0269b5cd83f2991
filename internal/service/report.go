package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
)

// MemoryReport summarizes what the planner has learned so far.
type MemoryReport struct {
	Plans          []domain.MemoryAggregate    `json:"plans"`
	TopFailures    []domain.ActionFailureCount `json:"top_failures"`
	RecentFailures []domain.FailureRecord      `json:"recent_failures"`
	Ledger         LoadResult                  `json:"ledger"`
	Stats          PlannerStats                `json:"stats"`
	Suggestions    []string                    `json:"suggestions,omitempty"`
}

// Report builds a MemoryReport listing at most topN failing actions and the
// topN most recent failures.
func (p *Planner) Report(ctx context.Context, topN int) (*MemoryReport, error) {
	top, err := p.failures.TopFailures(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("top failures: %w", err)
	}
	recent, err := p.failures.RecentFailures(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("recent failures: %w", err)
	}

	report := &MemoryReport{
		Plans:          p.memory.Snapshot(),
		TopFailures:    top,
		RecentFailures: recent,
		Ledger:         p.memory.LastLoad(),
		Stats:          p.Stats(),
	}

	for _, f := range top {
		if f.Count >= 2 {
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("%s failed %d times; plans now route through %s%s", f.Action, f.Count, domain.ReviewPrefix, f.Action))
		}
	}
	for _, agg := range report.Plans {
		if agg.Attempts() >= 3 && agg.Confidence < DefaultConfidenceFloor {
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("plan %s for %q has confidence %.2f after %d attempts", agg.Fingerprint, agg.Goal, agg.Confidence, agg.Attempts()))
		}
	}
	if report.Ledger.Skipped > 0 {
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("%d corrupt ledger records were skipped on load", report.Ledger.Skipped))
	}
	return report, nil
}
