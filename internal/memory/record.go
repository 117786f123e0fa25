// Package memory provides per-session record storage with bounded-window
// recall, long-term context merging, and capped retention.
package memory

import "time"

// Record is one committed prompt/response exchange. Records are created
// once per completed request and never mutated afterward; they become
// eligible for eviction past the retention horizon or the session cap.
type Record struct {
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	Weight    float64   `json:"weight"`
}
