package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite creates or opens a SQLite-backed store at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// OpenSQLiteMemory creates an in-memory SQLite store (useful for testing).
func OpenSQLiteMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	s := &SQLiteStore{db: db, path: ":memory:"}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// schema contains the memory store schema. Timestamps are stored as
// unix nanoseconds so ordering survives round-trips exactly.
const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    prompt TEXT NOT NULL,
    response TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    PRIMARY KEY(session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_memory_session_time ON memory_records(session_id, created_at);
`

func (s *SQLiteStore) Read(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	query := `SELECT session_id, seq, prompt, response, created_at, weight
		FROM memory_records WHERE session_id = ? ORDER BY seq DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt int64
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.Prompt, &rec.Response, &createdAt, &rec.Weight); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Timestamp = time.Unix(0, createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; flip to oldest-first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (s *SQLiteStore) All(ctx context.Context, sessionID string) ([]Record, error) {
	return s.Read(ctx, sessionID, 0)
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_records (session_id, seq, prompt, response, created_at, weight)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Seq, rec.Prompt, rec.Response, rec.Timestamp.UnixNano(), rec.Weight)
	if err != nil {
		return fmt.Errorf("appending record for session %s: %w", rec.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string, seq int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_records WHERE session_id = ? AND seq = ?`, sessionID, seq)
	if err != nil {
		return fmt.Errorf("deleting record %s/%d: %w", sessionID, seq, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
