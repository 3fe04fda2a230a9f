package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Index is an optional, secondary SQLite database used for message
// search/indexing; the append-only JSONL transcript file remains the
// authoritative record. Nothing requires an Index to exist — Writer works
// with none attached — but when one is attached via Writer.SetIndex,
// AppendRun mirrors the non-empty assistant text and each tool result into
// it (not the header or tool-call entries) so a caller (e.g. a channel
// adapter's "search my history" feature) gets queryable access without
// re-scanning every transcript file.
//
// Grounded on internal/ai/threadstore/store.go: sqlite
// driver import, WAL + busy_timeout pragmas, single-connection pool.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the sqlite index database at path.
func OpenIndex(path string) (*Index, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("transcript index: missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, fmt.Errorf("transcript index: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, fmt.Errorf("transcript index: open: %w", err)
	}
	if err := initIndexSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Index{db: db}, nil
}

func initIndexSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("transcript index: pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("transcript index: pragma busy_timeout: %w", err)
	}
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transcript_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_key TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp_unix_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transcript_records_session
			ON transcript_records(session_key, timestamp_unix_ms);
	`)
	if err != nil {
		return fmt.Errorf("transcript index: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error {
	if idx == nil || idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// Record inserts one searchable row. Best-effort: index-write failures do
// not fail the run, matching the JSONL writer's own error policy.
func (idx *Index) Record(ctx context.Context, sessionKey, role, text string, timestampUnixMs int64) error {
	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO transcript_records (session_key, role, text, timestamp_unix_ms) VALUES (?, ?, ?, ?)`,
		sessionKey, role, text, timestampUnixMs,
	)
	if err != nil {
		return fmt.Errorf("transcript index: insert: %w", err)
	}
	return nil
}

// SearchResult is one indexed hit.
type SearchResult struct {
	SessionKey string
	Role string
	Text string
	TimestampUnixMs int64
}

// Search returns rows for sessionKey whose text contains substr, most
// recent first, capped at limit.
func (idx *Index) Search(ctx context.Context, sessionKey, substr string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := idx.db.QueryContext(ctx,
		`SELECT session_key, role, text, timestamp_unix_ms FROM transcript_records
		 WHERE session_key = ? AND text LIKE ? ESCAPE '\'
		 ORDER BY timestamp_unix_ms DESC LIMIT ?`,
		sessionKey, "%"+escapeLike(substr)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("transcript index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.SessionKey, &r.Role, &r.Text, &r.TimestampUnixMs); err != nil {
			return nil, fmt.Errorf("transcript index: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
