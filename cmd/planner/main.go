// Command planner runs planning cycles and inspects episodic memory from the
// terminal.
package main

import (
	"fmt"
	"os"

	"github.com/Harshitk-cp/adaptive-planner/internal/bootstrap"
	"github.com/Harshitk-cp/adaptive-planner/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger *zap.Logger

	ledgerPath    string
	ledgerBackend string
	seed          int64
	epsilon       float64
	failureRate   float64
	contextTags   []string
	jsonOutput    bool
	verbose       bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "planner",
		Short: "Adaptive planner: generate, score, execute and learn from plans",
		Long: `planner drives the adaptive planning loop against a simulated environment.

Every cycle generates candidate plans for a goal, scores them against
episodic memory, picks one epsilon-greedily, executes it and records the
outcome in the ledger so later cycles choose better.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return err
			}
			level := config.LogLevel()
			switch {
			case verbose:
				level = "debug"
			case cmd.Flags().Changed("log-level"):
				level, _ = cmd.Flags().GetString("log-level")
			case os.Getenv("LOG_LEVEL") == "":
				// Styled output already narrates the run.
				level = "warn"
			}
			var err error
			logger, err = bootstrap.NewLogger(level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&ledgerPath, "ledger", "", "ledger path (default from LEDGER_PATH)")
	pf.StringVar(&ledgerBackend, "backend", "", "ledger backend: jsonl, sqlite or postgres (default from LEDGER_BACKEND)")
	pf.Int64Var(&seed, "seed", 0, "random seed for reproducible runs")
	pf.Float64Var(&epsilon, "epsilon", 0, "exploration rate in [0, 1]")
	pf.Float64Var(&failureRate, "failure-rate", 0, "simulated per-step failure probability")
	pf.StringSliceVar(&contextTags, "tags", nil, "context tags describing the situation")
	pf.BoolVar(&jsonOutput, "json", false, "print JSON instead of styled text")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newCycleCmd(),
		newPursueCmd(),
		newEvidenceCmd(),
		newReplayCmd(),
		newReportCmd(),
		newVersionCmd(),
	)
	return root
}

// settings merges env configuration with explicitly set flags.
func settings(cmd *cobra.Command) bootstrap.Settings {
	s := bootstrap.SettingsFromEnv()
	flags := cmd.Flags()
	if flags.Changed("backend") {
		s.LedgerBackend = ledgerBackend
	}
	if flags.Changed("ledger") {
		s.LedgerPath = ledgerPath
	}
	if flags.Changed("seed") {
		v := seed
		s.Seed = &v
	}
	if flags.Changed("epsilon") {
		s.Epsilon = epsilon
	}
	if flags.Changed("failure-rate") {
		s.StepFailureRate = failureRate
	}
	return s
}

func openPlanner(cmd *cobra.Command) (*bootstrap.Components, error) {
	s := settings(cmd)
	if s.Epsilon < 0 || s.Epsilon > 1 {
		return nil, fmt.Errorf("epsilon must be within [0, 1], got %v", s.Epsilon)
	}
	return bootstrap.New(cmd.Context(), s, logger)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
