package auth

import (
	"context"
	"time"

	domain "chesslessons/backend/internal/domain/auth"
)

// TokenManager abstracts token issuance and verification.
type TokenManager interface {
	Issue(user *domain.User, kind domain.TokenKind, ttl time.Duration) (string, error)
	Decode(token string) (*domain.Claims, error)
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// RecoveryNotifier delivers a recovery token to the account owner out of band.
type RecoveryNotifier interface {
	DeliverRecovery(ctx context.Context, user *domain.User, token string) error
}
