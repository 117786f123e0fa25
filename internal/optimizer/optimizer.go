// Package optimizer reviews generated output: it runs the post-generation
// safety assessment and computes a confidence score from pluggable
// quality scorers.
package optimizer

import (
	"context"

	"github.com/metapromptlabs/metaprompt/internal/safety"
)

// QualityScorer rates one aspect of an output in [0,1].
type QualityScorer interface {
	Name() string
	Score(prompt, output string) float64
}

// Review is the outcome of a post-generation check.
type Review struct {
	Assessment safety.Assessment  `json:"assessment"`
	Scores     map[string]float64 `json:"scores"`
	Confidence float64            `json:"confidence"`
}

// Optimizer runs output reviews.
type Optimizer struct {
	safety  *safety.Engine
	scorers []QualityScorer
}

// New creates an optimizer with the built-in scorers. Additional scorers
// can be appended.
func New(engine *safety.Engine, extra ...QualityScorer) *Optimizer {
	scorers := []QualityScorer{
		LengthScorer{},
		StructureScorer{},
		CoverageScorer{},
	}
	scorers = append(scorers, extra...)
	return &Optimizer{safety: engine, scorers: scorers}
}

// Review assesses the output at the given safety level and computes the
// confidence as the mean of the quality scorers, clipped to [0,1].
func (o *Optimizer) Review(ctx context.Context, prompt, output, level string) Review {
	r := Review{
		Assessment: o.safety.Assess(ctx, output, level),
		Scores:     make(map[string]float64, len(o.scorers)),
	}

	var sum float64
	for _, s := range o.scorers {
		v := clip01(s.Score(prompt, output))
		r.Scores[s.Name()] = v
		sum += v
	}
	if len(o.scorers) > 0 {
		r.Confidence = clip01(sum / float64(len(o.scorers)))
	}
	return r
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
