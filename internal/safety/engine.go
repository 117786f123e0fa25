package safety

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Default safety thresholds per level, applied when a level is missing
// from the configured map.
const defaultThreshold = 0.7

// Params configures the rule engine.
type Params struct {
	// Required lists the detectors that must be evaluated for every
	// assessment. A required detector that is not registered fails closed.
	Required []string
	// Floors holds per-detector minimum scores. A detector scoring below
	// its floor fails the verdict regardless of the aggregate.
	Floors map[string]float64
	// Levels maps safety level names to global thresholds.
	Levels map[string]float64
	// RulesetVersion is recorded in every assessment so stored assessments
	// stay interpretable after rules change.
	RulesetVersion string
}

// Engine evaluates text against the required detector set.
type Engine struct {
	detectors map[string]Detector
	params    Params
	logger    *zap.Logger
}

// NewEngine creates a rule engine with the built-in detectors registered.
func NewEngine(params Params, logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		detectors: make(map[string]Detector),
		params:    params,
		logger:    logger,
	}

	version := params.RulesetVersion
	content, err := NewRegexDetector("content_filter", version, 0.2, harmfulPatterns)
	if err != nil {
		return nil, err
	}
	bias, err := NewRegexDetector("bias_detector", version, 0.3, biasPatterns)
	if err != nil {
		return nil, err
	}
	ethics, err := NewRegexDetector("ethics", version, 0.4, ethicsPatterns)
	if err != nil {
		return nil, err
	}
	toxicity, err := NewWordListDetector("toxicity", version, 0.1, toxicWords)
	if err != nil {
		return nil, err
	}

	for _, d := range []Detector{content, bias, ethics, toxicity} {
		e.Register(d)
	}
	return e, nil
}

// Register adds or replaces a detector. Registration happens at
// configuration time, before the engine serves assessments.
func (e *Engine) Register(d Detector) {
	e.detectors[d.Name()] = d
}

// Threshold returns the global threshold for the given level.
func (e *Engine) Threshold(level string) float64 {
	if t, ok := e.params.Levels[level]; ok {
		return t
	}
	return defaultThreshold
}

// Assess evaluates every required detector against the text. The aggregate
// is the minimum score across required detectors; the verdict passes only
// if the aggregate meets the level threshold and no detector falls below
// its own floor. A detector error counts as a zero score (fail-closed).
func (e *Engine) Assess(ctx context.Context, text string, level string) Assessment {
	threshold := e.Threshold(level)

	a := Assessment{
		Level:          level,
		Threshold:      threshold,
		Scores:         make(map[string]float64, len(e.params.Required)),
		Aggregate:      1.0,
		Pass:           true,
		RulesetVersion: e.params.RulesetVersion,
		EvaluatedAt:    time.Now().UTC(),
	}

	for _, name := range e.params.Required {
		score := e.evaluate(ctx, name, text, &a)
		a.Scores[name] = score
		if score < a.Aggregate {
			a.Aggregate = score
		}
		if floor, ok := e.params.Floors[name]; ok && score < floor {
			a.Pass = false
		}
	}

	if a.Aggregate < threshold {
		a.Pass = false
	}
	sort.Strings(a.TriggeredRules)
	a.RiskLevel = riskLevel(a.Aggregate)
	a.Recommendations = recommendations(a)
	return a
}

// riskLevel buckets the aggregate score.
func riskLevel(aggregate float64) string {
	switch {
	case aggregate >= 0.8:
		return "low"
	case aggregate >= 0.6:
		return "medium"
	case aggregate >= 0.4:
		return "high"
	default:
		return "critical"
	}
}

// detectorAdvice is the generic remediation per detector, emitted when
// the detector's score drops below 0.5.
var detectorAdvice = map[string]string{
	"content_filter": "Review content for potentially harmful language",
	"ethics":         "Review for ethical compliance",
	"toxicity":       "Reduce toxic language and tone",
}

// biasAdvice gives per-category mitigation for the bias detector; every
// triggered bias category yields a recommendation.
var biasAdvice = map[string]string{
	"gender_bias":        "Use gender-neutral language and avoid stereotypes",
	"racial_bias":        "Focus on individual characteristics, not group assumptions",
	"age_bias":           "Avoid age-based assumptions and generalizations",
	"socioeconomic_bias": "Consider individual circumstances, not economic status",
}

// recommendations derives remediation advice from the triggered rules
// and scores. Deterministic: rules are already sorted and each piece of
// advice appears once.
func recommendations(a Assessment) []string {
	var recs []string
	seen := make(map[string]bool)
	add := func(r string) {
		if !seen[r] {
			seen[r] = true
			recs = append(recs, r)
		}
	}

	for _, rule := range a.TriggeredRules {
		detector, category, ok := strings.Cut(rule, ":")
		if !ok {
			continue
		}
		if detector == "bias_detector" {
			advice, found := biasAdvice[category]
			if !found {
				advice = "Review for bias"
			}
			add(fmt.Sprintf("Address %s: %s", category, advice))
			continue
		}
		if advice, found := detectorAdvice[detector]; found && a.Scores[detector] < 0.5 {
			add(advice)
		}
	}
	return recs
}

// evaluate runs one detector, applying the fail-closed policy on faults.
func (e *Engine) evaluate(ctx context.Context, name, text string, a *Assessment) float64 {
	d, ok := e.detectors[name]
	if !ok {
		e.logger.Warn("required detector not registered, failing closed",
			zap.String("detector", name))
		a.TriggeredRules = append(a.TriggeredRules, fmt.Sprintf("%s:unavailable", name))
		return 0
	}

	score, err := d.Score(ctx, text)
	if err != nil {
		e.logger.Error("detector fault, failing closed",
			zap.String("detector", name), zap.Error(err))
		a.TriggeredRules = append(a.TriggeredRules, fmt.Sprintf("%s:internal_error", name))
		return 0
	}

	for _, rule := range score.TriggeredRules {
		a.TriggeredRules = append(a.TriggeredRules, fmt.Sprintf("%s:%s", name, rule))
	}
	return clamp01(score.Value)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
