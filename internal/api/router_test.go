package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/adaptive-planner/internal/bootstrap"
	"github.com/Harshitk-cp/adaptive-planner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, failureRate float64, opts Options) *App {
	t.Helper()
	seed := int64(11)
	s := bootstrap.DefaultSettings(filepath.Join(t.TempDir(), "ledger.jsonl"))
	s.Seed = &seed
	s.Epsilon = 0
	s.StepFailureRate = failureRate

	c, err := bootstrap.New(t.Context(), s, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS = 1000
		opts.RateLimitBurst = 1000
	}
	return NewApp(c, opts, zap.NewNop())
}

func do(t *testing.T, app *App, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, 0, Options{})

	rec := do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Contains(t, m, "planner")
	assert.Contains(t, m, "build")

	routes, ok := m["routes"].([]any)
	require.True(t, ok, "routes missing from metrics")
	require.NotEmpty(t, routes)
	assert.Equal(t, "GET /health", routes[0].(map[string]any)["route"])
}

func TestRunCycleEndpoint(t *testing.T) {
	app := newTestApp(t, 1, Options{})

	rec := do(t, app, http.MethodPost, "/v1/cycles", map[string]any{"goal": "fix auth bug", "context_tags": []string{"auth"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Chosen  domain.Plan    `json:"chosen"`
		Outcome domain.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.OutcomeFailure, res.Outcome.Kind)
	assert.Equal(t, "check_logs", res.Outcome.FailedAction)

	rec = do(t, app, http.MethodGet, "/v1/evidence/"+res.Chosen.Fingerprint+"?tags=auth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ev struct {
		Evidence domain.MemoryEvidence `json:"evidence"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.True(t, ev.Evidence.Seen)
	assert.Equal(t, 1, ev.Evidence.FailureCount)

	rec = do(t, app, http.MethodGet, "/v1/memory/report?top=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "check_logs")

	rec = do(t, app, http.MethodGet, "/v1/memory/similar?tags=auth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), res.Chosen.Fingerprint)
}

func TestRunCycleEndpoint_Validation(t *testing.T) {
	app := newTestApp(t, 0, Options{})

	rec := do(t, app, http.MethodPost, "/v1/cycles", map[string]any{"goal": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/cycles", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPursueEndpoint(t *testing.T) {
	app := newTestApp(t, 0, Options{})

	rec := do(t, app, http.MethodPost, "/v1/goals/pursue", map[string]any{
		"goal": "fix auth bug",
		"checkpoints": []map[string]any{
			{"description": "a", "expected_progress": 0.25},
			{"description": "b", "expected_progress": 0.5},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		State domain.GoalState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.InDelta(t, 0.5, res.State.Progress, 1e-9)
	assert.Equal(t, domain.GoalOnTrack, res.State.Status)

	rec = do(t, app, http.MethodPost, "/v1/goals/pursue", map[string]any{"goal": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	abandoned := domain.GoalState{Goal: "x", Status: domain.GoalAbandoned}
	rec = do(t, app, http.MethodPost, "/v1/goals/pursue", map[string]any{
		"state":       abandoned,
		"checkpoints": []map[string]any{{"expected_progress": 0.5}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/goals/pursue", map[string]any{
		"state":       map[string]any{"goal": "x", "active": false, "confidence": 0.2, "status": "active-on-track"},
		"checkpoints": []map[string]any{{"expected_progress": 0.5}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/goals/pursue", map[string]any{
		"state":       map[string]any{"goal": "x", "active": true, "confidence": 0.7},
		"checkpoints": []map[string]any{{"expected_progress": 0.5}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreAndMutateEndpoints(t *testing.T) {
	app := newTestApp(t, 1, Options{})

	rec := do(t, app, http.MethodPost, "/v1/cycles", map[string]any{"goal": "fix auth bug"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/plans/mutate", map[string]any{
		"plan": map[string]any{
			"goal":  "fix auth bug",
			"steps": []string{"check_logs", "fix_auth_issue", "deploy_fix", "run_tests"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mutated domain.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mutated))
	assert.Equal(t, "review_check_logs", mutated.Steps[0])
	assert.Contains(t, mutated.Constraints, "avoid:check_logs")

	rec = do(t, app, http.MethodPost, "/v1/plans/score", map[string]any{"goal": "fix auth bug"})
	require.Equal(t, http.StatusOK, rec.Code)
	var scored struct {
		Candidates []domain.Plan `json:"candidates"`
		BestIndex  int           `json:"best_index"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scored))
	require.Len(t, scored.Candidates, 2)
	assert.Equal(t, 1, scored.BestIndex)

	rec = do(t, app, http.MethodPost, "/v1/plans/score", map[string]any{
		"plans": []map[string]any{{
			"goal":         "g",
			"steps":        []string{"a", "b"},
			"dependencies": []map[string]int{{"from": 0, "to": 1}, {"from": 1, "to": 0}},
		}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	app := newTestApp(t, 0, Options{APIKey: "k"})

	rec := do(t, app, http.MethodGet, "/v1/memory/report", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/memory/report", nil, "Authorization", "Bearer k")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
