package service

import (
	"testing"
)

func TestFailureClassifier_Classify(t *testing.T) {
	c := NewFailureClassifier(nil)

	tests := []struct {
		action string
		want   string
	}{
		{"fix_auth_issue", CauseAuthentication},
		{"deploy_fix", CauseDeployment},
		{"run_tests", CauseTest},
		{"check_logs", CauseObservability},
		{"Build_Artifact", CauseBuild},
		{"review_fix_auth_issue", CauseAuthentication},
		{"make_coffee", CauseUnknown},
		{"", CauseUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			if got := c.Classify(tt.action); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.action, got, tt.want)
			}
		})
	}
}

func TestFailureClassifier_FirstMatchWins(t *testing.T) {
	c := NewFailureClassifier([]FailureRule{
		{Substring: "deploy", Cause: "first"},
		{Substring: "fix", Cause: "second"},
	})
	if got := c.Classify("deploy_fix"); got != "first" {
		t.Errorf("Classify = %q, want first", got)
	}
	if got := c.Classify("fix_it"); got != "second" {
		t.Errorf("Classify = %q, want second", got)
	}
}

func TestFailureClassifier_CustomTableReplacesDefaults(t *testing.T) {
	c := NewFailureClassifier([]FailureRule{{Substring: "QUOTA", Cause: "quota_exceeded"}})
	if got := c.Classify("check_quota"); got != "quota_exceeded" {
		t.Errorf("Classify = %q, want quota_exceeded", got)
	}
	if got := c.Classify("deploy_fix"); got != CauseUnknown {
		t.Errorf("Classify = %q, want %q", got, CauseUnknown)
	}
}
