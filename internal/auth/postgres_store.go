package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const revocationSchema = `
CREATE TABLE IF NOT EXISTS auth_revoked_tokens (
	token_id   TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresRevocationStore shares revocations between API replicas.
type PostgresRevocationStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRevocationStore opens a pool for dsn and creates the table when
// missing.
func NewPostgresRevocationStore(ctx context.Context, dsn string) (*PostgresRevocationStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres revocation dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres revocation config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres revocation pool: %w", err)
	}
	if _, err := pool.Exec(ctx, revocationSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create revocation table: %w", err)
	}
	return &PostgresRevocationStore{pool: pool}, nil
}

// Close releases the pool, giving up when ctx ends first.
func (s *PostgresRevocationStore) Close(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *PostgresRevocationStore) Revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO auth_revoked_tokens (token_id, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (token_id) DO NOTHING
`, tokenID, userID, expiresAt.UTC())
	return err
}

func (s *PostgresRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var found string
	err := s.pool.QueryRow(ctx, `SELECT token_id FROM auth_revoked_tokens WHERE token_id = $1`, tokenID).Scan(&found)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *PostgresRevocationStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_revoked_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresRevocationStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}
