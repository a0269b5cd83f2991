package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command against a ledger in a temp dir.
func runCLI(t *testing.T, ledger string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PLANNER_ENV", "test")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PLAYBOOK_PATH", "")
	t.Setenv("LEDGER_BACKEND", "jsonl")

	jsonOutput, verbose, contextTags = false, false, nil

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--ledger", ledger}, args...))
	root.SetContext(t.Context())
	err := root.Execute()
	return out.String(), err
}

func TestCLI_CycleThenReport(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "memory.jsonl")

	out, err := runCLI(t, ledger, "cycle", "--goal", "fix login bug", "--tags", "auth,prod",
		"--count", "3", "--seed", "7", "--epsilon", "0", "--failure-rate", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "candidate plan(s)")
	assert.Contains(t, out, "cycles=3 success=0 failure=3 partial=0")

	out, err = runCLI(t, ledger, "report", "--json")
	require.NoError(t, err)

	var rep struct {
		Plans       []json.RawMessage `json:"plans"`
		TopFailures []struct {
			Action string `json:"action"`
			Count  int    `json:"count"`
		} `json:"top_failures"`
		Ledger struct {
			Loaded int `json:"loaded"`
		} `json:"ledger"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 3, rep.Ledger.Loaded)
	assert.NotEmpty(t, rep.Plans)
	require.NotEmpty(t, rep.TopFailures)
}

func TestCLI_Replay(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "memory.jsonl")

	_, err := runCLI(t, ledger, "cycle", "--goal", "ship release", "--seed", "1", "--failure-rate", "0")
	require.NoError(t, err)

	out, err := runCLI(t, ledger, "replay")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded=1 skipped=0 fingerprints=1")
}

func TestCLI_Evidence(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "memory.jsonl")

	out, err := runCLI(t, ledger, "evidence", "--goal", "fix login bug")
	require.NoError(t, err)
	assert.Contains(t, out, "unseen (neutral prior)")

	_, err = runCLI(t, ledger, "cycle", "--goal", "fix login bug", "--seed", "3", "--epsilon", "0", "--failure-rate", "0")
	require.NoError(t, err)

	out, err = runCLI(t, ledger, "evidence", "--goal", "fix login bug")
	require.NoError(t, err)
	assert.Contains(t, out, "1 success, 0 failure, 0 partial")
}

func TestCLI_Pursue(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "memory.jsonl")

	out, err := runCLI(t, ledger, "pursue", "--goal", "fix login bug", "--seed", "5",
		"--failure-rate", "1", "--checkpoints", "0.5,0.5,0.5,0.5,0.5,0.5", "--json")
	require.NoError(t, err)

	var res struct {
		State struct {
			Status string `json:"status"`
			Active bool   `json:"active"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "abandoned", res.State.Status)
	assert.False(t, res.State.Active)
}

func TestCLI_Errors(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "memory.jsonl")

	tests := []struct {
		name string
		args []string
	}{
		{"cycle without goal", []string{"cycle"}},
		{"cycle with zero count", []string{"cycle", "--goal", "x", "--count", "0"}},
		{"pursue out of range checkpoint", []string{"pursue", "--goal", "x", "--checkpoints", "1.5"}},
		{"evidence without target", []string{"evidence"}},
		{"epsilon out of range", []string{"cycle", "--goal", "x", "--epsilon", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, ledger, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, filepath.Join(t.TempDir(), "m.jsonl"), "version")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestBuildCheckpoints(t *testing.T) {
	cps, err := buildCheckpoints([]float64{0.25, 1})
	require.NoError(t, err)
	require.Len(t, cps, 2)
	assert.Equal(t, "checkpoint-2", cps[1].Description)
	assert.Equal(t, 1.0, cps[1].ExpectedProgress)

	_, err = buildCheckpoints([]float64{-0.1})
	assert.Error(t, err)
}
