package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/improstack/impro-engine/internal/models"
)

// RuleEngine turns numeric analysis output into human-readable annotations
// using a YAML rule pack.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single annotation rule.
type Rule struct {
	ID          string    `yaml:"id"`
	Match       RuleMatch `yaml:"match"`
	Annotations []string  `yaml:"annotations"`
}

// RuleMatch defines optional attributes for rule matching. Empty fields
// always match.
type RuleMatch struct {
	Synchrony       string  `yaml:"synchrony"`
	Performer       string  `yaml:"performer"`
	MinDuetFraction float64 `yaml:"min_duet_fraction"`
	MinTrioTotal    float64 `yaml:"min_trio_total"`
	LeaderRequired  bool    `yaml:"leader_required"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or the
// file is missing, returns a nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Annotate produces rule-based annotations for an analysis result.
func (e *RuleEngine) Annotate(result models.AnalysisResult) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.Synchrony != "" && !strings.EqualFold(rule.Match.Synchrony, string(result.Synchrony)) {
			continue
		}
		if rule.Match.Performer != "" && !performerPresent(rule.Match.Performer, result) {
			continue
		}
		if rule.Match.MinDuetFraction > 0 && result.DuetFraction < rule.Match.MinDuetFraction {
			continue
		}
		if rule.Match.MinTrioTotal > 0 && result.TrioTotal < rule.Match.MinTrioTotal {
			continue
		}
		if rule.Match.LeaderRequired && result.Coupling.Leader == "" {
			continue
		}
		matched = appendUnique(matched, rule.Annotations...)
	}
	return matched
}

func performerPresent(performer string, result models.AnalysisResult) bool {
	for _, p := range result.Performers {
		if strings.EqualFold(performer, p) {
			return true
		}
	}
	return strings.EqualFold(performer, result.Coupling.Leader)
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[item] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
