// Package analysis derives an enriched session context from raw request
// input. Enrichment is a pure computation: identical input always yields
// an identical context, and nothing is persisted here.
package analysis

import "time"

// Turn is one completed prompt/response exchange within a session.
type Turn struct {
	Seq       int       `json:"seq"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	Weight    float64   `json:"weight"`
}

// Signals are the derived per-request signals.
type Signals struct {
	Intent           string  `json:"intent"`
	IntentConfidence float64 `json:"intent_confidence"`
	Sentiment        float64 `json:"sentiment"`
	TemporalTag      string  `json:"temporal_tag"`
	CulturalTag      string  `json:"cultural_tag"`
}

// SessionContext carries everything the pipeline knows about a session
// for the duration of one request. The turn history is bounded by the
// memory window; long-term preference signals are merged in by the
// memory manager.
type SessionContext struct {
	SessionID   string            `json:"session_id"`
	Turns       []Turn            `json:"turns,omitempty"`
	Signals     Signals           `json:"signals"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Expertise returns the expertise-level preference, or empty when unset.
func (c SessionContext) Expertise() string {
	return c.Preferences["expertise_level"]
}
