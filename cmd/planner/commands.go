package main

import (
	"errors"
	"fmt"

	"github.com/Harshitk-cp/adaptive-planner/internal/bootstrap"
	"github.com/Harshitk-cp/adaptive-planner/internal/buildconfig"
	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/Harshitk-cp/adaptive-planner/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errGoalFlag = errors.New("--goal is required")

func newCycleCmd() *cobra.Command {
	var (
		goal       string
		aggressive bool
		count      int
	)
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run planning cycles for a goal",
		Long: `Generate candidates, score them, select one, execute it in the simulated
environment and record the outcome. Repeat --count times so later cycles
learn from earlier failures.`,
		Example: `  planner cycle --goal "fix login bug" --tags auth,prod --count 3 --seed 42`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if goal == "" {
				return errGoalFlag
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %d", count)
			}
			c, err := openPlanner(cmd)
			if err != nil {
				return err
			}
			defer closeComponents(c)

			r := newRenderer(cmd.OutOrStdout())
			in := service.CycleInput{Goal: goal, ContextTags: contextTags, Aggressive: aggressive}
			if !jsonOutput {
				in.Sink = r
			}

			results := make([]*service.CycleResult, 0, count)
			for i := 0; i < count; i++ {
				res, err := c.Planner.RunCycle(cmd.Context(), in)
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			if jsonOutput {
				return r.json(results)
			}
			stats := c.Planner.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "%s cycles=%d success=%d failure=%d partial=%d\n",
				r.styles.Label.Render("done"), stats.Cycles, stats.Successes, stats.Failures, stats.Partials)
			return nil
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "goal description")
	cmd.Flags().BoolVar(&aggressive, "aggressive", false, "also avoid steps whose failure cause was seen before")
	cmd.Flags().IntVar(&count, "count", 1, "number of cycles to run")
	return cmd
}

func newPursueCmd() *cobra.Command {
	var (
		goal        string
		checkpoints []float64
	)
	cmd := &cobra.Command{
		Use:   "pursue",
		Short: "Pursue a long-horizon goal through progress checkpoints",
		Long: `Run one cycle per checkpoint, advance goal progress from each outcome and
replan when progress falls behind the checkpoint's expectation. The goal is
abandoned once confidence reaches the floor.`,
		Example: `  planner pursue --goal "ship release" --checkpoints 0.25,0.5,0.75,1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if goal == "" {
				return errGoalFlag
			}
			if len(checkpoints) == 0 {
				return errors.New("at least one checkpoint is required")
			}
			cps, err := buildCheckpoints(checkpoints)
			if err != nil {
				return err
			}
			c, err := openPlanner(cmd)
			if err != nil {
				return err
			}
			defer closeComponents(c)

			r := newRenderer(cmd.OutOrStdout())
			in := service.PursueInput{Goal: goal, ContextTags: contextTags, Checkpoints: cps}
			if !jsonOutput {
				in.Sink = r
			}
			res, err := c.Planner.Pursue(cmd.Context(), in)
			if err != nil {
				return err
			}
			if jsonOutput {
				return r.json(res)
			}
			r.goal(res.State)
			return nil
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "goal description")
	cmd.Flags().Float64SliceVar(&checkpoints, "checkpoints", []float64{0.25, 0.5, 0.75, 1.0}, "expected progress at each checkpoint")
	return cmd
}

func buildCheckpoints(expected []float64) ([]domain.Checkpoint, error) {
	cps := make([]domain.Checkpoint, len(expected))
	for i, e := range expected {
		if e < 0 || e > 1 {
			return nil, fmt.Errorf("checkpoint %d: expected progress %v is outside [0, 1]", i+1, e)
		}
		cps[i] = domain.Checkpoint{Description: fmt.Sprintf("checkpoint-%d", i+1), ExpectedProgress: e}
	}
	return cps, nil
}

func newEvidenceCmd() *cobra.Command {
	var goal string
	cmd := &cobra.Command{
		Use:   "evidence [fingerprint]",
		Short: "Show what memory knows about a plan",
		Long: `Print the memory evidence for a plan fingerprint. Without a fingerprint,
the baseline plan generated for --goal is looked up instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && goal == "" {
				return errors.New("a fingerprint argument or --goal is required")
			}
			c, err := openPlanner(cmd)
			if err != nil {
				return err
			}
			defer closeComponents(c)

			var fingerprint string
			if len(args) == 1 {
				fingerprint = args[0]
			} else {
				plan, err := c.Planner.Generator().Generate(goal, contextTags)
				if err != nil {
					return err
				}
				fingerprint = plan.Fingerprint
			}

			ev := c.Memory.Evidence(fingerprint, contextTags)
			r := newRenderer(cmd.OutOrStdout())
			if jsonOutput {
				return r.json(ev)
			}
			r.evidence(ev)
			return nil
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "look up the baseline plan for this goal")
	return cmd
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the ledger and report corrupt records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openPlanner(cmd)
			if err != nil {
				return err
			}
			defer closeComponents(c)

			r := newRenderer(cmd.OutOrStdout())
			if jsonOutput {
				return r.json(replaySummary(c.Load))
			}
			rows := make([][]string, 0, len(c.Load.Errors))
			for _, e := range c.Load.Errors {
				rows = append(rows, []string{e.Error()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s loaded=%d skipped=%d fingerprints=%d\n",
				r.styles.Label.Render("ledger"), c.Load.Loaded, c.Load.Skipped, len(c.Memory.Snapshot()))
			if len(rows) > 0 {
				r.table("Skipped records", []string{"error"}, rows)
			}
			return nil
		},
	}
}

type replayResult struct {
	Loaded  int      `json:"loaded"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

func replaySummary(load *service.LoadResult) replayResult {
	out := replayResult{Loaded: load.Loaded, Skipped: load.Skipped}
	for _, e := range load.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return out
}

func newReportCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize learned plans and failing actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openPlanner(cmd)
			if err != nil {
				return err
			}
			defer closeComponents(c)

			rep, err := c.Planner.Report(cmd.Context(), top)
			if err != nil {
				return err
			}
			r := newRenderer(cmd.OutOrStdout())
			if jsonOutput {
				return r.json(rep)
			}
			r.report(rep)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "number of failing actions to list")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return newRenderer(cmd.OutOrStdout()).json(buildconfig.VersionInfo())
			}
			fmt.Fprintln(cmd.OutOrStdout(), buildconfig.String())
			return nil
		},
	}
}

func closeComponents(c *bootstrap.Components) {
	if err := c.Close(); err != nil {
		logger.Warn("failed to close planner resources", zap.Error(err))
	}
}
