package auth

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for auth users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) (*User, error)
	UpdateChessLevel(ctx context.Context, id string, level ChessLevel, updatedAt time.Time) (*User, error)
}

// RevocationStore tracks refresh tokens revoked before their natural expiry.
type RevocationStore interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
	// Prune drops every entry whose expiry is at or before now and reports how many went.
	Prune(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}
