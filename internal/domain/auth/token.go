package auth

import (
	"fmt"
	"time"
)

// TokenKind is the value of the "type" claim.
type TokenKind string

const (
	KindAccess   TokenKind = "access"
	KindRefresh  TokenKind = "refresh"
	KindRecovery TokenKind = "recovery"
)

// ParseTokenKind maps a raw claim onto a known kind.
func ParseTokenKind(raw string) (TokenKind, error) {
	switch k := TokenKind(raw); k {
	case KindAccess, KindRefresh, KindRecovery:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrTokenInvalid, raw)
	}
}

// Claims is the verified payload of a decoded token.
type Claims struct {
	Subject   string
	UserID    string
	Kind      TokenKind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Require fails with ErrInvalidTokenType unless the claims carry the wanted kind.
func (c *Claims) Require(kind TokenKind) error {
	if c.Kind != kind {
		return fmt.Errorf("%w: want %s, got %s", ErrInvalidTokenType, kind, c.Kind)
	}
	return nil
}
