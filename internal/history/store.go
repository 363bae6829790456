// Package history records completion attempts in a local SQLite database.
// Only metadata is stored; user text and model output never are.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Status values for an entry.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Entry is one completion attempt.
type Entry struct {
	ID           string        `json:"id"`
	Action       string        `json:"action"`
	Tone         string        `json:"tone,omitempty"`
	Model        string        `json:"model"`
	Status       string        `json:"status"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	InputTokens  int           `json:"input_tokens"`
	OutputLength int           `json:"output_length"`
	Duration     time.Duration `json:"duration_ns"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Store is a SQLite implementation of the interaction log.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			tone TEXT,
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_length INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts e, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, action, tone, model, status, error_kind, input_tokens, output_length, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Tone, e.Model, e.Status, e.ErrorKind,
		e.InputTokens, e.OutputLength, int64(e.Duration), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. A limit of zero uses
// the default; larger limits are capped.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, tone, model, status, error_kind, input_tokens, output_length, duration_ns, created_at
		FROM interactions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			tone      sql.NullString
			errorKind sql.NullString
			duration  int64
		)
		if err := rows.Scan(&e.ID, &e.Action, &tone, &e.Model, &e.Status, &errorKind,
			&e.InputTokens, &e.OutputLength, &duration, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		e.Tone = tone.String
		e.ErrorKind = errorKind.String
		e.Duration = time.Duration(duration)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
