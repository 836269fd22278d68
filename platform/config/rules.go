package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is the call-tag vocabulary used by the reconciliation engine.
type Rules struct {
	// QualifiedTags marks a call as qualified for the linked-job fallback.
	QualifiedTags []string `yaml:"qualified_tags"`
	// ExcludedTags block the later-qualified tag from being added.
	ExcludedTags []string `yaml:"excluded_tags"`
	// LaterQualifiedTag is appended to a call once a job is linked to it.
	LaterQualifiedTag string `yaml:"later_qualified_tag"`
}

// DefaultRules returns the vocabulary used when no rules file is configured.
func DefaultRules() Rules {
	return Rules{
		QualifiedTags:     []string{"qualified", "qualified lead", "booked", "later qualified"},
		ExcludedTags:      []string{"qualified", "qualified lead", "later qualified"},
		LaterQualifiedTag: "later qualified",
	}
}

// LoadRulesFile reads a YAML rules file. Missing keys keep their defaults.
func LoadRulesFile(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	rules := DefaultRules()
	var parsed Rules
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	if len(parsed.QualifiedTags) > 0 {
		rules.QualifiedTags = parsed.QualifiedTags
	}
	if len(parsed.ExcludedTags) > 0 {
		rules.ExcludedTags = parsed.ExcludedTags
	}
	if strings.TrimSpace(parsed.LaterQualifiedTag) != "" {
		rules.LaterQualifiedTag = strings.TrimSpace(parsed.LaterQualifiedTag)
	}

	return rules, rules.Validate()
}

// Validate checks that the rules can drive the engine.
func (r Rules) Validate() error {
	if strings.TrimSpace(r.LaterQualifiedTag) == "" {
		return errors.New("later qualified tag must not be empty")
	}
	return nil
}
