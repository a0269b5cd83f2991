// Package bootstrap assembles a Planner and its collaborators from
// configuration. Both the HTTP server and the CLI start here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/config"
	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/Harshitk-cp/adaptive-planner/internal/service"
	"github.com/Harshitk-cp/adaptive-planner/internal/store"
	"go.uber.org/zap"
)

// Ledger backends.
const (
	BackendJSONL    = "jsonl"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var (
	ErrUnknownBackend      = errors.New("unknown ledger backend")
	ErrDatabaseURLRequired = errors.New("DATABASE_URL is required for the postgres ledger")
)

// Settings carries everything needed to build a Planner.
type Settings struct {
	LedgerBackend string
	LedgerPath    string
	DatabaseURL   string
	RedisURL      string
	PlaybookPath  string

	Epsilon             float64
	DecayHalfLife       time.Duration
	LearningRate        float64
	ReplanningThreshold float64
	ConfidenceFloor     float64
	ReplanStep          float64
	InitialConfidence   float64
	ProgressStep        float64
	Weights             service.ScorerWeights
	StepFailureRate     float64
	ReviewFailureFactor float64
	Reorderings         int
	Seed                *int64
}

// DefaultSettings returns in-process defaults backed by a JSONL ledger at path.
func DefaultSettings(path string) Settings {
	return Settings{
		LedgerBackend:       BackendJSONL,
		LedgerPath:          path,
		Epsilon:             service.DefaultEpsilon,
		DecayHalfLife:       service.DefaultDecayHalfLife,
		LearningRate:        service.DefaultLearningRate,
		ReplanningThreshold: service.DefaultReplanningThreshold,
		ConfidenceFloor:     service.DefaultConfidenceFloor,
		ReplanStep:          service.DefaultReplanStep,
		InitialConfidence:   service.DefaultInitialGoalConfidence,
		ProgressStep:        service.DefaultProgressStep,
		Weights:             service.DefaultScorerWeights,
		StepFailureRate:     service.DefaultStepFailureRate,
		ReviewFailureFactor: service.DefaultReviewFailureFactor,
		Reorderings:         service.DefaultReorderings,
	}
}

// SettingsFromEnv reads Settings through the config getters.
func SettingsFromEnv() Settings {
	w := config.ScorerWeights()
	s := Settings{
		LedgerBackend:       config.LedgerBackend(),
		LedgerPath:          config.LedgerPath(),
		DatabaseURL:         config.DatabaseURL(),
		RedisURL:            config.RedisURL(),
		PlaybookPath:        config.PlaybookPath(),
		Epsilon:             config.Epsilon(),
		DecayHalfLife:       config.DecayHalfLife(),
		LearningRate:        config.LearningRate(),
		ReplanningThreshold: config.ReplanningThreshold(),
		ConfidenceFloor:     config.ConfidenceFloor(),
		ReplanStep:          config.ReplanStep(),
		InitialConfidence:   config.InitialGoalConfidence(),
		ProgressStep:        config.ProgressStep(),
		Weights:             service.ScorerWeights{Confidence: w[0], Similarity: w[1], Recency: w[2]},
		StepFailureRate:     config.StepFailureRate(),
		ReviewFailureFactor: config.ReviewFailureFactor(),
		Reorderings:         config.Reorderings(),
	}
	if seed, ok := config.RandomSeed(); ok {
		s.Seed = &seed
	}
	return s
}

// Components is a fully wired planner plus the resources it owns.
type Components struct {
	Planner      *service.Planner
	Memory       *service.EpisodicMemory
	Ledger       domain.LedgerStore
	Failures     domain.FailureMemory
	ContextIndex domain.ContextIndex
	Load         *service.LoadResult
	Settings     Settings

	pinger  func(context.Context) error
	closers []func() error
}

// New opens the configured ledger, replays it and builds the planner.
func New(ctx context.Context, s Settings, logger *zap.Logger) (*Components, error) {
	c := &Components{Settings: s}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	templates, rules, err := loadPlaybook(s.PlaybookPath)
	if err != nil {
		return nil, err
	}

	if err := c.openLedger(ctx, s); err != nil {
		return nil, err
	}

	mem := service.NewEpisodicMemory(c.Ledger, logger)
	mem.HalfLife = s.DecayHalfLife
	mem.LearningRate = s.LearningRate
	if c.ContextIndex != nil {
		mem.SetContextIndex(c.ContextIndex)
	}
	load, err := mem.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load episodic memory: %w", err)
	}
	c.Memory = mem
	c.Load = load

	if s.RedisURL != "" {
		rfm, err := store.OpenRedisFailureMemory(ctx, s.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rfm.Close)
		c.Failures = rfm
		logger.Info("using redis failure memory")
	} else {
		fm := service.NewFailureMemory()
		fm.Seed(load.Failures)
		c.Failures = fm
	}

	rs := service.NewRandomSources(s.Seed)
	classifier := service.NewFailureClassifier(rules)

	executor := service.NewExecutor(rs.Simulation, classifier, logger)
	executor.StepFailureRate = s.StepFailureRate
	executor.ReviewFailureFactor = s.ReviewFailureFactor

	monitor := service.NewProgressMonitor(logger)
	monitor.ReplanningThreshold = s.ReplanningThreshold
	monitor.ConfidenceFloor = s.ConfidenceFloor
	monitor.ReplanStep = s.ReplanStep
	monitor.InitialConfidence = s.InitialConfidence

	planner := service.NewPlanner(
		service.NewPlanGenerator(templates, classifier, logger),
		service.NewPlanScorer(mem, s.Weights),
		service.NewSelectionPolicy(rs.Exploration),
		executor,
		mem,
		c.Failures,
		monitor,
		rs.Reordering,
		logger,
	)
	planner.Epsilon = s.Epsilon
	planner.Reorderings = s.Reorderings
	planner.ProgressStep = s.ProgressStep
	c.Planner = planner

	logger.Info("planner ready",
		zap.String("ledger_backend", s.LedgerBackend),
		zap.Int("records_loaded", load.Loaded),
		zap.Int("records_skipped", load.Skipped),
		zap.Float64("epsilon", s.Epsilon),
		zap.Bool("seeded", s.Seed != nil))

	ok = true
	return c, nil
}

func (c *Components) openLedger(ctx context.Context, s Settings) error {
	switch s.LedgerBackend {
	case BackendJSONL, "":
		l, err := store.NewJSONLLedger(s.LedgerPath)
		if err != nil {
			return err
		}
		c.Ledger = l
	case BackendSQLite:
		l, err := store.NewSQLiteLedger(s.LedgerPath)
		if err != nil {
			return err
		}
		c.Ledger = l
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return ErrDatabaseURLRequired
		}
		l, err := store.OpenPostgresLedger(ctx, s.DatabaseURL)
		if err != nil {
			return err
		}
		c.Ledger = l
		c.pinger = l.Pool().Ping

		idx := store.NewPostgresContextIndex(l.Pool())
		if err := idx.EnsureSchema(ctx); err != nil {
			_ = l.Close()
			c.Ledger = nil
			return err
		}
		c.ContextIndex = idx
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.LedgerBackend)
	}
	return nil
}

// Ping checks the backing database when there is one.
func (c *Components) Ping(ctx context.Context) error {
	if c.pinger == nil {
		return nil
	}
	return c.pinger(ctx)
}

// Close releases the failure memory connection and then the ledger.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	if c.Ledger != nil {
		errs = append(errs, c.Ledger.Close())
	}
	return errors.Join(errs...)
}
