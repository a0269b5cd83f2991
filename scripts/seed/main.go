// Seed script for writing a demo ledger.
// Run with: go run ./scripts/seed
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/Harshitk-cp/adaptive-planner/internal/bootstrap"
	"github.com/Harshitk-cp/adaptive-planner/internal/config"
	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	settings := bootstrap.SettingsFromEnv()

	c, err := bootstrap.New(ctx, settings, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to open planner: %v", err)
	}
	defer c.Close()

	fmt.Printf("Opened %s ledger (%d existing records)\n", settings.LedgerBackend, c.Load.Loaded)

	// Historical outcomes, oldest first.
	history := []struct {
		goal    string
		tags    []string
		daysAgo int
		outcome domain.OutcomeType
		failed  string
	}{
		{"fix login bug", []string{"auth", "prod"}, 6, domain.OutcomeFailure, "fix_auth_issue"},
		{"fix login bug", []string{"auth", "prod"}, 5, domain.OutcomeFailure, "fix_auth_issue"},
		{"fix login bug", []string{"auth", "staging"}, 4, domain.OutcomeSuccess, ""},
		{"ship release 1.3", []string{"release", "ci"}, 4, domain.OutcomeSuccess, ""},
		{"ship release 1.3", []string{"release", "ci"}, 3, domain.OutcomeFailure, "run_lint"},
		{"migrate user schema", []string{"db", "prod"}, 2, domain.OutcomePartial, ""},
		{"migrate user schema", []string{"db", "prod"}, 1, domain.OutcomeSuccess, ""},
	}

	gen := c.Planner.Generator()
	classifier := gen.Classifier()
	now := time.Now()
	for _, h := range history {
		plan, err := gen.Generate(h.goal, h.tags)
		if err != nil {
			log.Fatalf("Failed to generate plan for %q: %v", h.goal, err)
		}

		ev := domain.OutcomeEvent{
			Plan:        plan,
			ContextTags: h.tags,
			Outcome:     h.outcome,
			Timestamp:   now.Add(-time.Duration(h.daysAgo) * 24 * time.Hour),
			Notes:       "seed",
		}
		if h.failed != "" {
			ev.FailedAction = h.failed
			ev.FailureCause = classifier.Classify(h.failed)
		}

		rec, err := c.Memory.Record(ctx, ev)
		if err != nil {
			log.Printf("Warning: Failed to record outcome: %v", err)
			continue
		}
		if h.failed != "" {
			err := c.Failures.RecordFailure(ctx, domain.FailureRecord{Action: ev.FailedAction, Cause: ev.FailureCause, Timestamp: rec.Timestamp})
			if err != nil {
				log.Printf("Warning: Failed to record failure: %v", err)
			}
		}
		fmt.Printf("Recorded [%s] %s -> confidence %.3f\n", h.outcome, truncate(h.goal, 30), rec.ConfidenceAfter)
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nTo protect the API, add this to your .env:")
	fmt.Printf("API_KEY=%s\n", generateAPIKey())
	fmt.Println("\nThen inspect what was learned:")
	fmt.Println("  go run ./cmd/planner report")
	fmt.Println("  curl -H 'Authorization: Bearer $API_KEY' http://localhost:8080/v1/memory/report")
}

func generateAPIKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}
	return "pl_" + base64.URLEncoding.EncodeToString(b)[:40]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
