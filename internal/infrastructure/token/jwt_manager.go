package token

import (
	"errors"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	domain "chesslessons/backend/internal/domain/auth"
	usecase "chesslessons/backend/internal/usecase/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// JWTManager issues and validates HMAC-signed JWT tokens.
type JWTManager struct {
	secret  []byte
	method  jwt.SigningMethod
	nowFunc func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// Ensure JWTManager implements the TokenManager interface.
var _ usecase.TokenManager = (*JWTManager)(nil)

// Claims represents token claims.
type Claims struct {
	UserID string `json:"id"`
	Kind   string `json:"type"`
	jwt.RegisteredClaims
}

// NewJWTManager constructs a manager for the given secret and HMAC algorithm
// (HS256, HS384 or HS512; empty means HS256).
func NewJWTManager(secret, algorithm string) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	return &JWTManager{
		secret:  []byte(secret),
		method:  method,
		nowFunc: time.Now,
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// SetClock overrides the time source for issuing and validating tokens.
func (m *JWTManager) SetClock(fn func() time.Time) {
	if fn != nil {
		m.nowFunc = fn
	}
}

// Issue creates a signed token of the given kind for the user.
func (m *JWTManager) Issue(user *domain.User, kind domain.TokenKind, ttl time.Duration) (string, error) {
	if user == nil {
		return "", errors.New("issue token: user is required")
	}
	now := m.nowFunc().UTC()
	claims := Claims{
		UserID: user.ID,
		Kind:   string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ID:        m.newID(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry and returns the claims.
func (m *JWTManager) Decode(tokenString string) (*domain.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: exp", domain.ErrMissingClaims)
	}
	kind, err := domain.ParseTokenKind(claims.Kind)
	if err != nil {
		return nil, err
	}

	out := &domain.Claims{
		Subject:   claims.Subject,
		UserID:    claims.UserID,
		Kind:      kind,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func (m *JWTManager) newID(now time.Time) string {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), m.entropy).String()
}
