package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metapromptlabs/metaprompt/internal/analysis"
)

// Params configures the manager.
type Params struct {
	// WindowSize bounds how many recent records a recall returns by default.
	WindowSize int
	// SessionCap is the per-session record cap; exceeding it triggers eviction.
	SessionCap int
	// Retention is how long records live before becoming evictable. Zero
	// disables age-based eviction.
	Retention time.Duration
}

// Manager merges short-term and long-term memory into session context and
// owns the commit/eviction lifecycle.
//
// Commits for the same session are serialized; reads run concurrently with
// commits and may not observe an in-flight one.
type Manager struct {
	store    Store
	params   Params
	semantic *SemanticIndex
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager over the given store. The semantic index
// is optional and may be nil.
func NewManager(store Store, params Params, semantic *SemanticIndex, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		params:   params,
		semantic: semantic,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the commit mutex for a session.
func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}

// Recall returns up to windowSize most recent records, oldest to newest.
// Store failures degrade to an empty recall: losing memory must not lose
// the request.
func (m *Manager) Recall(ctx context.Context, sessionID string, windowSize int) []Record {
	if sessionID == "" {
		return nil
	}
	if windowSize <= 0 {
		windowSize = m.params.WindowSize
	}

	records, err := m.store.Read(ctx, sessionID, windowSize)
	if err != nil {
		m.logger.Warn("memory recall failed, continuing without history",
			zap.String("session", sessionID), zap.Error(err))
		return nil
	}
	return records
}

// Reweight boosts record weights by semantic similarity to the current
// prompt, so the dominant-intent accumulation in Merge favors past turns
// related to what the user is asking now. A disabled index or a ranking
// failure leaves the weights untouched.
func (m *Manager) Reweight(ctx context.Context, sessionID, prompt string, records []Record) []Record {
	if m.semantic == nil || len(records) == 0 || prompt == "" {
		return records
	}

	ranks, err := m.semantic.Rank(ctx, sessionID, prompt, len(records))
	if err != nil {
		m.logger.Warn("semantic ranking failed, keeping frequency weights",
			zap.String("session", sessionID), zap.Error(err))
		return records
	}

	out := make([]Record, len(records))
	copy(out, records)
	for i := range out {
		key := fmt.Sprintf("%s/%d", out[i].SessionID, out[i].Seq)
		if sim, ok := ranks[key]; ok && sim > 0 {
			out[i].Weight *= 1 + float64(sim)
		}
	}
	return out
}

// Merge folds recalled records into the session context: the turn history
// becomes the context's turns, and a dominant intent accumulated by
// weighted frequency over past prompts is recorded as a long-term
// preference signal. Deterministic given the same record ordering.
func (m *Manager) Merge(sctx analysis.SessionContext, records []Record) analysis.SessionContext {
	if len(records) == 0 {
		return sctx
	}

	turns := make([]analysis.Turn, len(records))
	intentWeight := make(map[string]float64)
	for i, rec := range records {
		turns[i] = analysis.Turn{
			Seq:       rec.Seq,
			Prompt:    rec.Prompt,
			Response:  rec.Response,
			Timestamp: rec.Timestamp,
			Weight:    rec.Weight,
		}
		label, _ := analysis.KeywordIntent(rec.Prompt)
		intentWeight[label] += rec.Weight
	}
	sctx.Turns = turns

	if dominant := dominantIntent(intentWeight); dominant != "" {
		if sctx.Preferences == nil {
			sctx.Preferences = map[string]string{}
		}
		if _, explicit := sctx.Preferences["dominant_intent"]; !explicit {
			sctx.Preferences["dominant_intent"] = dominant
		}
	}
	return sctx
}

// dominantIntent picks the highest-weight label, breaking ties by name
// for determinism.
func dominantIntent(weights map[string]float64) string {
	labels := make([]string, 0, len(weights))
	for l := range weights {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best := ""
	bestWeight := 0.0
	for _, l := range labels {
		if weights[l] > bestWeight {
			best, bestWeight = l, weights[l]
		}
	}
	return best
}

// Commit appends a new record for the session and evicts past the cap and
// retention horizon. Commits for one session never interleave.
func (m *Manager) Commit(ctx context.Context, sessionID, prompt, response string, weight float64) error {
	if sessionID == "" {
		return nil
	}

	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.store.All(ctx, sessionID)
	if err != nil {
		return err
	}

	seq := 1
	if n := len(existing); n > 0 {
		seq = existing[n-1].Seq + 1
	}

	rec := Record{
		SessionID: sessionID,
		Seq:       seq,
		Prompt:    prompt,
		Response:  response,
		Timestamp: time.Now().UTC(),
		Weight:    weight,
	}
	if err := m.store.Append(ctx, rec); err != nil {
		return err
	}

	if m.semantic != nil {
		if err := m.semantic.Add(ctx, rec); err != nil {
			m.logger.Warn("semantic index update failed",
				zap.String("session", sessionID), zap.Error(err))
		}
	}

	m.evict(ctx, sessionID, append(existing, rec))
	return nil
}

// evict applies the retention horizon and the session cap. Victims are
// chosen oldest-first; on a timestamp tie the lowest relevance weight
// goes first.
func (m *Manager) evict(ctx context.Context, sessionID string, records []Record) {
	var victims []Record

	if m.params.Retention > 0 {
		cutoff := time.Now().UTC().Add(-m.params.Retention)
		for _, rec := range records {
			if rec.Timestamp.Before(cutoff) {
				victims = append(victims, rec)
			}
		}
	}

	if m.params.SessionCap > 0 && len(records)-len(victims) > m.params.SessionCap {
		survivors := make([]Record, 0, len(records))
		evicted := make(map[int]bool, len(victims))
		for _, v := range victims {
			evicted[v.Seq] = true
		}
		for _, rec := range records {
			if !evicted[rec.Seq] {
				survivors = append(survivors, rec)
			}
		}

		sort.SliceStable(survivors, func(i, j int) bool {
			if !survivors[i].Timestamp.Equal(survivors[j].Timestamp) {
				return survivors[i].Timestamp.Before(survivors[j].Timestamp)
			}
			return survivors[i].Weight < survivors[j].Weight
		})
		over := len(survivors) - m.params.SessionCap
		victims = append(victims, survivors[:over]...)
	}

	for _, v := range victims {
		if err := m.store.Delete(ctx, sessionID, v.Seq); err != nil {
			m.logger.Warn("eviction failed",
				zap.String("session", sessionID), zap.Int("seq", v.Seq), zap.Error(err))
		}
	}
}
