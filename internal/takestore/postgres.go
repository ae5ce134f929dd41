package takestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the takes table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS takes (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL DEFAULT '',
    sample_rate INTEGER NOT NULL,
    channels    INTEGER NOT NULL,
    frames      BIGINT NOT NULL,
    size        BIGINT NOT NULL,
    wav         BYTEA NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_takes_session ON takes(session_id, created_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on db. The caller is responsible
// for calling [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("takestore: migrate: %w", err)
	}
	return nil
}

// Put implements [Store]. An existing take with the same id is replaced.
func (s *PostgresStore) Put(ctx context.Context, t *Take) error {
	if err := prepare(t, s.now()); err != nil {
		return err
	}

	const query = `
		INSERT INTO takes (id, session_id, sample_rate, channels, frames, size, wav, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			sample_rate = EXCLUDED.sample_rate,
			channels = EXCLUDED.channels,
			frames = EXCLUDED.frames,
			size = EXCLUDED.size,
			wav = EXCLUDED.wav,
			created_at = EXCLUDED.created_at`

	_, err := s.db.Exec(ctx, query,
		t.ID, t.SessionID, t.SampleRate, t.Channels, t.Frames, t.Size, t.WAV, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("takestore: put %q: %w", t.ID, err)
	}
	return nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id string) (*Take, error) {
	const query = `
		SELECT id, session_id, sample_rate, channels, frames, size, wav, created_at
		FROM takes
		WHERE id = $1`

	var t Take
	err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.SessionID, &t.SampleRate, &t.Channels, &t.Frames, &t.Size, &t.WAV, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("takestore: get %q: %w", id, err)
	}
	return &t, nil
}

// List implements [Store]. The wav column is not selected.
func (s *PostgresStore) List(ctx context.Context, sessionID string) ([]Take, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if sessionID == "" {
		const query = `
			SELECT id, session_id, sample_rate, channels, frames, size, created_at
			FROM takes
			ORDER BY created_at, id`
		rows, err = s.db.Query(ctx, query)
	} else {
		const query = `
			SELECT id, session_id, sample_rate, channels, frames, size, created_at
			FROM takes
			WHERE session_id = $1
			ORDER BY created_at, id`
		rows, err = s.db.Query(ctx, query, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("takestore: list: %w", err)
	}
	defer rows.Close()

	var takes []Take
	for rows.Next() {
		var t Take
		if err := rows.Scan(
			&t.ID, &t.SessionID, &t.SampleRate, &t.Channels, &t.Frames, &t.Size, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("takestore: list scan: %w", err)
		}
		takes = append(takes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("takestore: list: %w", err)
	}
	return takes, nil
}

// Delete implements [Store].
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM takes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("takestore: delete %q: %w", id, err)
	}
	return nil
}
