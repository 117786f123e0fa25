package memory

import (
	"context"
	"sort"
	"sync"
)

// Store is the persistence contract for memory records.
type Store interface {
	// Read returns up to limit most recent records for the session,
	// ordered oldest to newest. A session with no records yields an
	// empty slice, not an error.
	Read(ctx context.Context, sessionID string, limit int) ([]Record, error)
	// All returns every record for the session, oldest to newest.
	All(ctx context.Context, sessionID string) ([]Record, error)
	// Append adds a record.
	Append(ctx context.Context, rec Record) error
	// Delete removes one record by sequence number.
	Delete(ctx context.Context, sessionID string, seq int) error
	// Close releases store resources.
	Close() error
}

// MemStore is an in-memory Store used in tests and for ephemeral runs.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string][]Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string][]Record)}
}

func (s *MemStore) Read(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.sessions[sessionID]
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

func (s *MemStore) All(ctx context.Context, sessionID string) ([]Record, error) {
	return s.Read(ctx, sessionID, 0)
}

func (s *MemStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[rec.SessionID] = append(s.sessions[rec.SessionID], rec)
	sort.SliceStable(s.sessions[rec.SessionID], func(i, j int) bool {
		return s.sessions[rec.SessionID][i].Seq < s.sessions[rec.SessionID][j].Seq
	})
	return nil
}

func (s *MemStore) Delete(ctx context.Context, sessionID string, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.sessions[sessionID]
	for i, r := range records {
		if r.Seq == seq {
			s.sessions[sessionID] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemStore) Close() error { return nil }
