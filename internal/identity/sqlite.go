// Package identity persists the participant id used in each session.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS participants (
	session        TEXT PRIMARY KEY,
	participant_id TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// ErrEmptySession is returned for blank session handles.
var ErrEmptySession = errors.New("empty session handle")

// Store keeps one participant id per session in SQLite.
type Store struct {
	db    *sql.DB
	newID func() string
}

// New opens (and migrates) the identity database at dbPath.
func New(dbPath string) (*Store, error) {
	return NewWithSetup(dbPath, migrate)
}

// NewWithSetup opens the database and runs setup before the first query.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db, newID: uuid.NewString}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ParticipantID returns the id used in session, creating it on first use.
// The same id is returned for the lifetime of the database.
func (s *Store) ParticipantID(ctx context.Context, session string) (string, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return "", ErrEmptySession
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO participants (session, participant_id) VALUES (?, ?)`,
		session, s.newID())
	if err != nil {
		return "", fmt.Errorf("insert participant: %w", err)
	}

	var id string
	err = s.db.QueryRowContext(ctx,
		`SELECT participant_id FROM participants WHERE session = ?`, session).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("select participant: %w", err)
	}
	return id, nil
}

// Forget drops the id of a session. The next ParticipantID call creates a new one.
func (s *Store) Forget(ctx context.Context, session string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM participants WHERE session = ?`, session); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// Sessions lists every session with a stored id.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session FROM participants ORDER BY session`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var session string
		if err := rows.Scan(&session); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}
