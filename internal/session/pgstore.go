package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table used by PgStore.
const Schema = `
CREATE TABLE IF NOT EXISTS console_sessions (
	id          TEXT PRIMARY KEY,
	username    TEXT NOT NULL,
	identity    JSONB NOT NULL,
	cookies     JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS console_sessions_expires_at_idx ON console_sessions (expires_at);
`

// PgStore keeps sessions in PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a store on pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("session: creating schema: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PgStore) Get(ctx context.Context, id string) (Record, error) {
	var (
		rec              Record
		identity, cookie []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, identity, cookies, created_at, expires_at
		FROM console_sessions
		WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&rec.ID, &identity, &cookie, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("session: querying %s: %w", id, err)
	}
	if err := json.Unmarshal(identity, &rec.Identity); err != nil {
		return Record{}, fmt.Errorf("session: decoding identity: %w", err)
	}
	if err := json.Unmarshal(cookie, &rec.BackendCookies); err != nil {
		return Record{}, fmt.Errorf("session: decoding cookies: %w", err)
	}
	return rec, nil
}

// Put implements Store.
func (s *PgStore) Put(ctx context.Context, rec Record) error {
	identity, err := json.Marshal(rec.Identity)
	if err != nil {
		return fmt.Errorf("session: encoding identity: %w", err)
	}
	cookies := rec.BackendCookies
	if cookies == nil {
		cookies = []Cookie{}
	}
	cookieJSON, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("session: encoding cookies: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO console_sessions (id, username, identity, cookies, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			identity = EXCLUDED.identity,
			cookies = EXCLUDED.cookies,
			expires_at = EXCLUDED.expires_at`,
		rec.ID, rec.Identity.Username, identity, cookieJSON, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("session: saving %s: %w", rec.ID, err)
	}
	return nil
}

// Delete implements Store.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM console_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("session: deleting %s: %w", id, err)
	}
	return nil
}

// PurgeExpired removes expired sessions and returns how many were removed.
func (s *PgStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM console_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("session: purging expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HealthCheck implements Store.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
