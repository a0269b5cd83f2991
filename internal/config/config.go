package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load applies the env file named by PLANNER_ENV (default .env) and its
// .secret sidecar. Variables already set in the environment win. Missing files
// are fine; a file that exists but does not parse is an error.
func Load() error {
	envFile := os.Getenv("PLANNER_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	for _, path := range []string{envFile, envFile + ".secret"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func floatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return v
}

// unitEnv reads a float that must lie in [0, 1].
func unitEnv(key string, def float64) float64 {
	v := floatEnv(key, def)
	if v < 0 || v > 1 {
		return def
	}
	return v
}

// Epsilon returns the exploration rate. Defaults to 0.1.
func Epsilon() float64 {
	return unitEnv("PLANNER_EPSILON", 0.1)
}

// DecayHalfLife is how long until old evidence counts half. Defaults to 24h.
func DecayHalfLife() time.Duration {
	d, err := time.ParseDuration(os.Getenv("PLANNER_DECAY_HALF_LIFE"))
	if err != nil || d < 0 {
		return 24 * time.Hour
	}
	return d
}

func LearningRate() float64 {
	v := unitEnv("PLANNER_LEARNING_RATE", 0.3)
	if v == 0 {
		return 0.3
	}
	return v
}

func ReplanningThreshold() float64 {
	return unitEnv("PLANNER_REPLANNING_THRESHOLD", 0.15)
}

func ConfidenceFloor() float64 {
	return unitEnv("PLANNER_CONFIDENCE_FLOOR", 0.3)
}

func ReplanStep() float64 {
	v := unitEnv("PLANNER_REPLAN_STEP", 0.1)
	if v == 0 {
		return 0.1
	}
	return v
}

func InitialGoalConfidence() float64 {
	return unitEnv("PLANNER_INITIAL_GOAL_CONFIDENCE", 0.7)
}

// ProgressStep is the progress credited for a successful cycle.
func ProgressStep() float64 {
	return unitEnv("PLANNER_PROGRESS_STEP", 0.25)
}

// ScorerWeights returns the confidence, similarity and recency weights from
// a comma-separated triple. Defaults to 0.6,0.25,0.15.
func ScorerWeights() [3]float64 {
	def := [3]float64{0.6, 0.25, 0.15}
	raw := os.Getenv("PLANNER_SCORER_WEIGHTS")
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return def
	}
	var w [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 {
			return def
		}
		w[i] = v
	}
	return w
}

func StepFailureRate() float64 {
	return unitEnv("PLANNER_STEP_FAILURE_RATE", 0.2)
}

func ReviewFailureFactor() float64 {
	return unitEnv("PLANNER_REVIEW_FAILURE_FACTOR", 0.5)
}

// RandomSeed returns the fixed seed, if one is configured.
func RandomSeed() (int64, bool) {
	raw := strings.TrimSpace(os.Getenv("PLANNER_RANDOM_SEED"))
	if raw == "" {
		return 0, false
	}
	seed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return seed, true
}

// Reorderings is how many randomized reorderings each cycle attempts.
func Reorderings() int {
	n, err := strconv.Atoi(os.Getenv("PLANNER_REORDERINGS"))
	if err != nil || n < 0 {
		return 2
	}
	return n
}

// LedgerBackend returns the configured ledger store.
// Defaults to "jsonl" if not set.
// Valid values: jsonl, sqlite, postgres
func LedgerBackend() string {
	b := strings.ToLower(os.Getenv("LEDGER_BACKEND"))
	if b == "" {
		return "jsonl"
	}
	return b
}

// LedgerPath is the file behind the jsonl and sqlite backends.
func LedgerPath() string {
	p := os.Getenv("LEDGER_PATH")
	if p != "" {
		return p
	}
	if LedgerBackend() == "sqlite" {
		return "data/episodic_memory.db"
	}
	return "data/episodic_memory.jsonl"
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// RedisURL selects the shared failure memory. Empty keeps it in-process.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

func PlaybookPath() string {
	return os.Getenv("PLAYBOOK_PATH")
}

// APIKey guards the HTTP API when set.
func APIKey() string {
	return os.Getenv("API_KEY")
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
