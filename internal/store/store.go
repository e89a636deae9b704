package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSession is returned when no kept-alive session has been saved.
var ErrNoSession = errors.New("no saved session")

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		session_id TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		engine TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submitted_at DATETIME NOT NULL,
		debug BOOLEAN NOT NULL,
		ok BOOLEAN NOT NULL,
		text_length INTEGER,
		attachments INTEGER,
		uploaded INTEGER,
		scheduled DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSession replaces the saved session. Only one is kept.
func (s *Store) SaveSession(ctx context.Context, r SessionRecord) error {
	if r.SavedAt.IsZero() {
		r.SavedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, session_id, endpoint, engine, saved_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			endpoint = excluded.endpoint,
			engine = excluded.engine,
			saved_at = excluded.saved_at
	`, r.SessionID, r.Endpoint, r.Engine, r.SavedAt)
	return err
}

// LoadSession returns the saved session or ErrNoSession.
func (s *Store) LoadSession(ctx context.Context) (SessionRecord, error) {
	var r SessionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, endpoint, engine, saved_at FROM sessions WHERE id = 1
	`).Scan(&r.SessionID, &r.Endpoint, &r.Engine, &r.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNoSession
	}
	return r, err
}

// ClearSession forgets the saved session.
func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

// RecordSubmission appends a history row and returns its id.
func (s *Store) RecordSubmission(ctx context.Context, sub Submission) (int64, error) {
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	var scheduled any
	if !sub.Scheduled.IsZero() {
		scheduled = sub.Scheduled
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (submitted_at, debug, ok, text_length, attachments, uploaded, scheduled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sub.SubmittedAt, sub.Debug, sub.OK, sub.TextLength, sub.Attachments, sub.Uploaded, scheduled)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentSubmissions returns up to limit rows, newest first.
func (s *Store) RecentSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submitted_at, debug, ok, text_length, attachments, uploaded, scheduled
		FROM submissions
		ORDER BY submitted_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		var scheduled sql.NullTime
		err := rows.Scan(
			&sub.ID, &sub.SubmittedAt, &sub.Debug, &sub.OK,
			&sub.TextLength, &sub.Attachments, &sub.Uploaded, &scheduled,
		)
		if err != nil {
			return nil, err
		}
		if scheduled.Valid {
			sub.Scheduled = scheduled.Time
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
