package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/Harshitk-cp/adaptive-planner/internal/service"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Partial lipgloss.Style
	Header  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Label:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
		Partial: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C")).Bold(true),
		Header:  lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// renderer prints planner events as they happen. It is the terminal
// counterpart of the zap LogSink.
type renderer struct {
	w      io.Writer
	styles styles
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, styles: defaultStyles()}
}

func (r *renderer) Emit(_ context.Context, e domain.Event) {
	s := r.styles
	switch e.Kind {
	case domain.EventKindCandidates:
		fmt.Fprintf(r.w, "%s %d candidate plan(s)\n", s.Title.Render("▶ cycle"), len(e.Candidates))
		for i, c := range e.Candidates {
			fmt.Fprintf(r.w, "  %s %s %s\n", s.Muted.Render(fmt.Sprintf("[%d]", i)), short(c.Fingerprint), strings.Join(c.Steps, " → "))
		}
	case domain.EventKindScored:
		if e.Score == nil {
			return
		}
		fmt.Fprintf(r.w, "  %s %s conf=%.3f evidence=%.3f sim=%.2f recency=%.2f final=%s\n",
			s.Label.Render("score"), short(e.Score.Fingerprint),
			e.Score.BaseConfidence, e.Score.MemoryEvidence, e.Score.Similarity, e.Score.RecencyWeight,
			s.Label.Render(fmt.Sprintf("%.4f", e.Score.FinalScore)))
	case domain.EventKindPlanChosen:
		if e.Plan == nil {
			return
		}
		mode := "exploit"
		if e.Explored {
			mode = "explore"
		}
		fmt.Fprintf(r.w, "  %s %s (%s)\n", s.Label.Render("chosen"), short(e.Plan.Fingerprint), mode)
		if len(e.Plan.Constraints) > 0 {
			fmt.Fprintf(r.w, "  %s %s\n", s.Muted.Render("constraints"), strings.Join(e.Plan.Constraints, ", "))
		}
	case domain.EventKindExecuted:
		if e.Outcome != nil {
			fmt.Fprintf(r.w, "  %s\n", r.outcome(*e.Outcome))
		}
	case domain.EventKindGoalUpdated:
		if e.Goal != nil {
			fmt.Fprintf(r.w, "  %s %s progress=%.2f confidence=%.2f\n",
				s.Label.Render("goal"), e.Goal.Status, e.Goal.Progress, e.Goal.Confidence)
		}
	}
}

func (r *renderer) outcome(o domain.Outcome) string {
	switch o.Kind {
	case domain.OutcomeSuccess:
		return r.styles.Success.Render("✔ success") + fmt.Sprintf(" after %d step(s)", o.CompletedSteps)
	case domain.OutcomeFailure:
		return r.styles.Failure.Render("✘ failure") + fmt.Sprintf(" at %s (%s)", o.FailedAction, o.Cause)
	default:
		return r.styles.Partial.Render("◐ partial") + fmt.Sprintf(" after %d step(s)", o.CompletedSteps)
	}
}

func (r *renderer) table(title string, headers []string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(r.w, r.styles.Title.Render(title))
	}
	if len(rows) == 0 {
		fmt.Fprintln(r.w, r.styles.Muted.Render("  (none)"))
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = r.styles.Header.Render(pad(h, widths[i]))
	}
	fmt.Fprintln(r.w, "  "+strings.Join(cells, "  "))
	for _, row := range rows {
		for i := range cells {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(r.w, "  "+strings.Join(cells, "  "))
	}
}

func (r *renderer) report(rep *service.MemoryReport) {
	rows := make([][]string, 0, len(rep.Plans))
	for _, p := range rep.Plans {
		rows = append(rows, []string{
			short(p.Fingerprint), p.Goal,
			fmt.Sprintf("%.3f", p.Confidence),
			fmt.Sprintf("%d/%d/%d", p.SuccessCount, p.FailureCount, p.PartialCount),
			p.LastSeen.Format("2006-01-02 15:04"),
		})
	}
	r.table("Plans", []string{"fingerprint", "goal", "confidence", "ok/fail/partial", "last seen"}, rows)

	rows = rows[:0]
	for _, f := range rep.TopFailures {
		rows = append(rows, []string{f.Action, fmt.Sprintf("%d", f.Count)})
	}
	r.table("Top failing actions", []string{"action", "failures"}, rows)

	rows = rows[:0]
	for _, f := range rep.RecentFailures {
		rows = append(rows, []string{f.Timestamp.Format("2006-01-02 15:04"), f.Action, f.Cause})
	}
	r.table("Recent failures", []string{"when", "action", "cause"}, rows)

	fmt.Fprintf(r.w, "%s loaded=%d skipped=%d\n", r.styles.Label.Render("ledger"), rep.Ledger.Loaded, rep.Ledger.Skipped)
	for _, s := range rep.Suggestions {
		fmt.Fprintf(r.w, "%s %s\n", r.styles.Partial.Render("!"), s)
	}
}

func (r *renderer) evidence(ev domain.MemoryEvidence) {
	seen := "unseen (neutral prior)"
	if ev.Seen {
		seen = fmt.Sprintf("%d success, %d failure, %d partial", ev.SuccessCount, ev.FailureCount, ev.PartialCount)
	}
	r.table("Evidence "+short(ev.Fingerprint), []string{"field", "value"}, [][]string{
		{"confidence", fmt.Sprintf("%.4f", ev.Confidence)},
		{"recency weight", fmt.Sprintf("%.4f", ev.RecencyWeight)},
		{"context similarity", fmt.Sprintf("%.4f", ev.SimilarContextScore)},
		{"history", seen},
	})
}

func (r *renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func (r *renderer) goal(g domain.GoalState) {
	status := r.styles.Partial
	switch g.Status {
	case domain.GoalAchieved:
		status = r.styles.Success
	case domain.GoalAbandoned:
		status = r.styles.Failure
	}
	fmt.Fprintf(r.w, "%s %q %s progress=%.2f confidence=%.2f\n",
		r.styles.Title.Render("goal"), g.Goal, status.Render(string(g.Status)), g.Progress, g.Confidence)
	if len(g.History) > 0 {
		fmt.Fprintf(r.w, "  %s %s\n", r.styles.Muted.Render("history"), strings.Join(g.History, " "))
	}
}
