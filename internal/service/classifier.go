package service

import (
	"strings"
)

// Failure cause categories.
const (
	CauseAuthentication = "authentication_failure"
	CauseDeployment     = "deployment_failure"
	CauseTest           = "test_failure"
	CauseBuild          = "build_failure"
	CauseConfiguration  = "configuration_error"
	CauseTimeout        = "timeout"
	CauseNetwork        = "network_failure"
	CauseData           = "data_error"
	CauseObservability  = "observability_gap"
	CauseLogic          = "logic_error"
	CauseUnknown        = "unknown_failure"
)

// FailureRule maps actions containing Substring to Cause.
type FailureRule struct {
	Substring string `json:"substring" yaml:"substring"`
	Cause     string `json:"cause" yaml:"cause"`
}

// DefaultFailureRules is evaluated top to bottom; the first match wins.
var DefaultFailureRules = []FailureRule{
	{Substring: "auth", Cause: CauseAuthentication},
	{Substring: "login", Cause: CauseAuthentication},
	{Substring: "deploy", Cause: CauseDeployment},
	{Substring: "release", Cause: CauseDeployment},
	{Substring: "test", Cause: CauseTest},
	{Substring: "lint", Cause: CauseTest},
	{Substring: "build", Cause: CauseBuild},
	{Substring: "compile", Cause: CauseBuild},
	{Substring: "config", Cause: CauseConfiguration},
	{Substring: "timeout", Cause: CauseTimeout},
	{Substring: "network", Cause: CauseNetwork},
	{Substring: "api", Cause: CauseNetwork},
	{Substring: "migrat", Cause: CauseData},
	{Substring: "data", Cause: CauseData},
	{Substring: "log", Cause: CauseObservability},
	{Substring: "fix", Cause: CauseLogic},
}

// FailureClassifier assigns a cause category to a failed action using an
// ordered rule table.
type FailureClassifier struct {
	rules []FailureRule
}

// NewFailureClassifier copies rules; an empty table selects DefaultFailureRules.
func NewFailureClassifier(rules []FailureRule) *FailureClassifier {
	if len(rules) == 0 {
		rules = DefaultFailureRules
	}
	cp := make([]FailureRule, 0, len(rules))
	for _, r := range rules {
		cp = append(cp, FailureRule{Substring: strings.ToLower(r.Substring), Cause: r.Cause})
	}
	return &FailureClassifier{rules: cp}
}

// Classify returns the cause of the first rule whose substring occurs in
// action, or CauseUnknown.
func (c *FailureClassifier) Classify(action string) string {
	a := strings.ToLower(action)
	for _, r := range c.rules {
		if r.Substring != "" && strings.Contains(a, r.Substring) {
			return r.Cause
		}
	}
	return CauseUnknown
}

// Rules returns a copy of the rule table in evaluation order.
func (c *FailureClassifier) Rules() []FailureRule {
	return append([]FailureRule(nil), c.rules...)
}
