// Package safety evaluates text against a versioned set of detectors and
// produces an assessment with a pass/fail verdict. The aggregate score is
// the minimum across required detectors: a single severe violation vetoes
// the whole assessment. Detector failures are fail-closed.
package safety

import (
	"context"
	"time"
)

// Score is the result of a single detector evaluation. Value is in [0,1]
// where 1.0 means no issues found.
type Score struct {
	Value          float64
	TriggeredRules []string
}

// Detector scores text against one class of safety rules.
type Detector interface {
	Name() string
	Version() string
	// Score returns a value in [0,1] plus triggered rule identifiers.
	// It never returns an error for ordinary "no issue" input; an error
	// signals an internal fault and is treated as an automatic fail.
	Score(ctx context.Context, text string) (Score, error)
}

// Assessment is the immutable outcome of evaluating all required detectors
// against one piece of text.
type Assessment struct {
	Level           string             `json:"level"`
	Threshold       float64            `json:"threshold"`
	Scores          map[string]float64 `json:"scores"`
	Aggregate       float64            `json:"aggregate"`
	Pass            bool               `json:"pass"`
	RiskLevel       string             `json:"risk_level"`
	TriggeredRules  []string           `json:"triggered_rules,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	RulesetVersion  string             `json:"ruleset_version"`
	EvaluatedAt     time.Time          `json:"evaluated_at"`
}
