package takestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS takes (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL DEFAULT '',
    sample_rate INTEGER NOT NULL,
    channels    INTEGER NOT NULL,
    frames      INTEGER NOT NULL,
    size        INTEGER NOT NULL,
    wav         BLOB NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_takes_session ON takes(session_id, created_at);
`

// SQLiteStore is a [Store] in a single SQLite file. Timestamps are stored as
// Unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating when missing) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("takestore: open sqlite %q: %w", path, err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("takestore: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Put implements [Store]. An existing take with the same id is replaced.
func (s *SQLiteStore) Put(ctx context.Context, t *Take) error {
	if err := prepare(t, s.now()); err != nil {
		return err
	}
	const query = `
		INSERT OR REPLACE INTO takes (id, session_id, sample_rate, channels, frames, size, wav, created_at)
		VALUES (?,?,?,?,?,?,?,?)`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.SessionID, t.SampleRate, t.Channels, t.Frames, t.Size, t.WAV, t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("takestore: put %q: %w", t.ID, err)
	}
	return nil
}

// Get implements [Store].
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Take, error) {
	const query = `
		SELECT id, session_id, sample_rate, channels, frames, size, wav, created_at
		FROM takes WHERE id = ?`

	var (
		t       Take
		created int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.SessionID, &t.SampleRate, &t.Channels, &t.Frames, &t.Size, &t.WAV, &created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("takestore: get %q: %w", id, err)
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	return &t, nil
}

// List implements [Store].
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]Take, error) {
	const query = `
		SELECT id, session_id, sample_rate, channels, frames, size, created_at
		FROM takes
		WHERE ? = '' OR session_id = ?
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("takestore: list: %w", err)
	}
	defer rows.Close()

	var takes []Take
	for rows.Next() {
		var (
			t       Take
			created int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.SampleRate, &t.Channels, &t.Frames, &t.Size, &created); err != nil {
			return nil, fmt.Errorf("takestore: list scan: %w", err)
		}
		t.CreatedAt = time.Unix(0, created).UTC()
		takes = append(takes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("takestore: list: %w", err)
	}
	return takes, nil
}

// Delete implements [Store].
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM takes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("takestore: delete %q: %w", id, err)
	}
	return nil
}
