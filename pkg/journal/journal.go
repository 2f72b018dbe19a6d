// Package journal records conversation turns to a local sqlite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Source of a turn.
const (
	SourceUser = "user"
	SourceIdle = "idle"
)

// Turn is one exchange: what was heard, what was said back, what was done.
type Turn struct {
	UtteranceID uuid.UUID
	Source      string
	User        string
	Reply       string
	ActionName  string
	At          time.Time
}

// Recorder persists turns.
type Recorder interface {
	Record(ctx context.Context, t Turn) error
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("journal: closed")

// Journal is a sqlite-backed Recorder.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" works for tests.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			utterance_id TEXT NOT NULL,
			source TEXT NOT NULL,
			user_text TEXT NOT NULL,
			reply TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Record implements Recorder.
func (j *Journal) Record(ctx context.Context, t Turn) error {
	if j.db == nil {
		return ErrClosed
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	if t.Source == "" {
		t.Source = SourceUser
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO turns (utterance_id, source, user_text, reply, action, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.UtteranceID.String(), t.Source, t.User, t.Reply, t.ActionName, t.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns up to n turns, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Turn, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT utterance_id, source, user_text, reply, action, created_at FROM turns ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t      Turn
			id, at string
		)
		if err := rows.Scan(&id, &t.Source, &t.User, &t.Reply, &t.ActionName, &at); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		t.UtteranceID, _ = uuid.Parse(id)
		t.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

var _ Recorder = (*Journal)(nil)
