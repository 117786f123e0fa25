package analysis

import (
	"errors"
	"strings"
)

// ErrInvalidRequest is returned when no prompt text is supplied.
var ErrInvalidRequest = errors.New("invalid request: prompt text is required")

// Input is the raw material for enrichment.
type Input struct {
	Prompt      string
	Context     string
	Preferences map[string]string
}

// Analyzer derives signals from request text. Scorers are pluggable and
// fixed at construction.
type Analyzer struct {
	intent    IntentScorer
	sentiment SentimentScorer
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithIntentScorer replaces the default intent scorer.
func WithIntentScorer(s IntentScorer) Option {
	return func(a *Analyzer) { a.intent = s }
}

// WithSentimentScorer replaces the default sentiment scorer.
func WithSentimentScorer(s SentimentScorer) Option {
	return func(a *Analyzer) { a.sentiment = s }
}

// NewAnalyzer creates an analyzer with keyword/lexicon scorers unless
// overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		intent:    KeywordIntent,
		sentiment: LexiconSentiment,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enrich computes a new SessionContext from the input and the prior
// context. The prior context's turn history and merged long-term fields
// are carried forward; signals are recomputed from the current input.
func (a *Analyzer) Enrich(in Input, prior SessionContext) (SessionContext, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return SessionContext{}, ErrInvalidRequest
	}

	text := in.Prompt
	if in.Context != "" {
		text = in.Context + "\n" + in.Prompt
	}

	intent, confidence := a.intent(text)

	enriched := SessionContext{
		SessionID:   prior.SessionID,
		Turns:       prior.Turns,
		Preferences: mergePreferences(prior.Preferences, in.Preferences),
		Signals: Signals{
			Intent:           intent,
			IntentConfidence: confidence,
			Sentiment:        a.sentiment(text),
			TemporalTag:      temporalTag(text),
			CulturalTag:      culturalTag(in.Preferences),
		},
	}
	return enriched, nil
}

var timeSensitiveMarkers = []string{"today", "now", "urgent", "deadline", "asap", "immediately", "tonight"}

// temporalTag derives a time-sensitivity tag from the text itself, never
// from the wall clock, so enrichment stays deterministic.
func temporalTag(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range timeSensitiveMarkers {
		if strings.Contains(lower, marker) {
			return "time_sensitive"
		}
	}
	return "timeless"
}

// culturalTag reads an explicit locale preference when present.
func culturalTag(prefs map[string]string) string {
	if locale, ok := prefs["locale"]; ok && locale != "" {
		return locale
	}
	return "neutral"
}

// mergePreferences overlays request preferences on top of the session's
// accumulated ones, without mutating either input map.
func mergePreferences(base, overlay map[string]string) map[string]string {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
