package auth

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists signals a duplicate email registration.
	ErrUserExists = errors.New("user with this email already exists")
	// ErrUserNotFound indicates missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenExpired means the token was valid but its expiry has passed.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid means the token signature or structure does not validate.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidTokenType means the token is genuine but of the wrong kind for the operation.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrTokenRevoked means the refresh token was revoked by a logout.
	ErrTokenRevoked = errors.New("refresh token is revoked")
	// ErrMissingClaims means a required claim is absent from a genuine token.
	ErrMissingClaims = errors.New("invalid token payload")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// ChessLevel is the self-declared playing strength stored with every account.
type ChessLevel string

const (
	LevelBeginner        ChessLevel = "Beginner"
	LevelAmateur         ChessLevel = "Amateur"
	LevelCandidateMaster ChessLevel = "Candidate Master"
	LevelMaster          ChessLevel = "Master"
)

// Valid reports whether l is one of the known levels.
func (l ChessLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelAmateur, LevelCandidateMaster, LevelMaster:
		return true
	}
	return false
}

// User models the authentication entity persisted in storage.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	ChessLevel   ChessLevel `json:"chess_level"`
	IsAdmin      bool       `json:"is_admin"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Credentials captures raw credential input for login.
type Credentials struct {
	Email    string
	Password string
}

// TokenPair is returned by every flow that signs a user in.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
