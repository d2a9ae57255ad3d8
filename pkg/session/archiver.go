package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteArchiver persists the memory of evicted sessions to a local
// sqlite database. The archive is write-only history: evicted sessions
// come back empty, the archive just keeps what they knew.
type SQLiteArchiver struct {
	db *sql.DB
}

// NewSQLiteArchiver opens (or creates) the archive database at path
func NewSQLiteArchiver(path string) (*SQLiteArchiver, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS archived_memories (
	session_id  TEXT NOT NULL,
	key         TEXT NOT NULL,
	value       TEXT NOT NULL,
	archived_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archived_session ON archived_memories (session_id);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}

	log.Info().Str("path", path).Msg("Session archive opened")

	return &SQLiteArchiver{db: db}, nil
}

// Archive stores the memory entries of an evicted session
func (a *SQLiteArchiver) Archive(sessionID string, memory map[string]string) error {
	if len(memory) == 0 {
		return nil
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO archived_memories (session_id, key, value, archived_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, value := range memory {
		if _, err := stmt.Exec(sessionID, key, value, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to archive memory %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	log.Debug().
		Str("session_id", sessionID).
		Int("entries", len(memory)).
		Msg("Session memory archived")

	return nil
}

// ArchivedMemories returns the archived entries for a session, newest
// first. Used by operators inspecting history; never read by the store.
func (a *SQLiteArchiver) ArchivedMemories(sessionID string) (map[string]string, error) {
	rows, err := a.db.Query(
		"SELECT key, value FROM archived_memories WHERE session_id = ? ORDER BY archived_at DESC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		if _, seen := out[key]; !seen {
			out[key] = value
		}
	}

	return out, rows.Err()
}

// Close closes the archive database
func (a *SQLiteArchiver) Close() error {
	return a.db.Close()
}
