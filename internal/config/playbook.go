package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidPlaybook = errors.New("invalid playbook")

// Playbook replaces the built-in plan templates and failure rules.
type Playbook struct {
	Templates    []TemplateSpec `yaml:"templates"`
	FailureRules []RuleSpec     `yaml:"failure_rules"`
}

type TemplateSpec struct {
	Name         string   `yaml:"name"`
	Keywords     []string `yaml:"keywords"`
	Steps        []string `yaml:"steps"`
	Dependencies [][2]int `yaml:"dependencies"`
}

type RuleSpec struct {
	Substring string `yaml:"substring"`
	Cause     string `yaml:"cause"`
}

// LoadPlaybook reads and validates the YAML playbook at path.
func LoadPlaybook(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}
	return ParsePlaybook(data)
}

func ParsePlaybook(data []byte) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlaybook, err)
	}
	if err := pb.Validate(); err != nil {
		return nil, err
	}
	return &pb, nil
}

func (pb *Playbook) Validate() error {
	names := make(map[string]bool, len(pb.Templates))
	for i, t := range pb.Templates {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: template %d has no name", ErrInvalidPlaybook, i)
		}
		if names[t.Name] {
			return fmt.Errorf("%w: duplicate template %q", ErrInvalidPlaybook, t.Name)
		}
		names[t.Name] = true

		if len(t.Steps) == 0 {
			return fmt.Errorf("%w: template %q has no steps", ErrInvalidPlaybook, t.Name)
		}
		for _, d := range t.Dependencies {
			if d[0] < 0 || d[1] < 0 || d[0] >= len(t.Steps) || d[1] >= len(t.Steps) || d[0] == d[1] {
				return fmt.Errorf("%w: template %q has dependency %d->%d out of range", ErrInvalidPlaybook, t.Name, d[0], d[1])
			}
		}
	}
	for i, r := range pb.FailureRules {
		if r.Substring == "" || r.Cause == "" {
			return fmt.Errorf("%w: failure rule %d needs substring and cause", ErrInvalidPlaybook, i)
		}
	}
	return nil
}
