package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// RegexDetector scores text against a table of category → patterns.
// Each match in a category adds penalty to that category's score; the
// detector value is 1 minus the worst category penalty.
type RegexDetector struct {
	name    string
	version string
	penalty float64
	rules   map[string][]*regexp.Regexp
}

// NewRegexDetector compiles the pattern table into a detector. Per-match
// penalty controls how quickly repeated matches drive the score down.
func NewRegexDetector(name, version string, penalty float64, patterns map[string][]string) (*RegexDetector, error) {
	rules := make(map[string][]*regexp.Regexp, len(patterns))
	for category, exprs := range patterns {
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("detector %s: compiling %s pattern %q: %w", name, category, expr, err)
			}
			rules[category] = append(rules[category], re)
		}
	}
	return &RegexDetector{name: name, version: version, penalty: penalty, rules: rules}, nil
}

func (d *RegexDetector) Name() string    { return d.name }
func (d *RegexDetector) Version() string { return d.version }

func (d *RegexDetector) Score(ctx context.Context, text string) (Score, error) {
	lower := strings.ToLower(text)

	worst := 0.0
	var triggered []string
	for category, res := range d.rules {
		matches := 0
		for _, re := range res {
			matches += len(re.FindAllStringIndex(lower, -1))
		}
		if matches == 0 {
			continue
		}
		penalty := float64(matches) * d.penalty
		if penalty > 1 {
			penalty = 1
		}
		if penalty > worst {
			worst = penalty
		}
		triggered = append(triggered, category)
	}

	return Score{Value: 1 - worst, TriggeredRules: triggered}, nil
}

// WordListDetector penalizes occurrences of words from a flat list.
type WordListDetector struct {
	name    string
	version string
	penalty float64
	words   []*regexp.Regexp
	labels  []string
}

// NewWordListDetector builds a detector from a word list. Each word is
// matched on word boundaries.
func NewWordListDetector(name, version string, penalty float64, words []string) (*WordListDetector, error) {
	d := &WordListDetector{name: name, version: version, penalty: penalty}
	for _, w := range words {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("detector %s: word %q: %w", name, w, err)
		}
		d.words = append(d.words, re)
		d.labels = append(d.labels, w)
	}
	return d, nil
}

func (d *WordListDetector) Name() string    { return d.name }
func (d *WordListDetector) Version() string { return d.version }

func (d *WordListDetector) Score(ctx context.Context, text string) (Score, error) {
	lower := strings.ToLower(text)

	penalty := 0.0
	var triggered []string
	for i, re := range d.words {
		n := len(re.FindAllStringIndex(lower, -1))
		if n == 0 {
			continue
		}
		penalty += float64(n) * d.penalty
		triggered = append(triggered, d.labels[i])
	}
	if penalty > 1 {
		penalty = 1
	}

	return Score{Value: 1 - penalty, TriggeredRules: triggered}, nil
}
