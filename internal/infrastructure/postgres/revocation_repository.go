package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "chesslessons/backend/internal/domain/auth"
)

// RevocationRepository keeps revoked refresh tokens in the revoked_tokens table so
// revocations survive restarts and are shared between processes.
type RevocationRepository struct {
	db *sql.DB
}

var _ domain.RevocationStore = (*RevocationRepository)(nil)

func NewRevocationRepository(db *sql.DB) *RevocationRepository {
	return &RevocationRepository{db: db}
}

func (r *RevocationRepository) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	const query = `
INSERT INTO revoked_tokens (jti, expires_at)
VALUES ($1, $2)
ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at
`
	_, err := r.db.ExecContext(ctx, query, jti, expiresAt.UTC())
	return err
}

func (r *RevocationRepository) Contains(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti,
	).Scan(&exists)
	return exists, err
}

func (r *RevocationRepository) Prune(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *RevocationRepository) Len(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revoked_tokens`).Scan(&n)
	return n, err
}
