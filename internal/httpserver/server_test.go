package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chesslessons/backend/internal/config"
	authdomain "chesslessons/backend/internal/domain/auth"
	"chesslessons/backend/internal/infrastructure/password"
	"chesslessons/backend/internal/infrastructure/revocation"
	"chesslessons/backend/internal/infrastructure/token"
	authusecase "chesslessons/backend/internal/usecase/auth"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]authdomain.User
}

func (m *memoryUsers) Create(_ context.Context, u *authdomain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return authdomain.ErrUserExists
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*authdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, authdomain.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*authdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, authdomain.ErrUserNotFound
	}
	return &u, nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, hash string, at time.Time) (*authdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, authdomain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	m.users[id] = u
	return &u, nil
}

func (m *memoryUsers) UpdateChessLevel(_ context.Context, id string, level authdomain.ChessLevel, at time.Time) (*authdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, authdomain.ErrUserNotFound
	}
	u.ChessLevel = level
	u.UpdatedAt = at
	m.users[id] = u
	return &u, nil
}

type mailbox struct {
	mu   sync.Mutex
	last string
}

func (m *mailbox) DeliverRecovery(_ context.Context, _ *authdomain.User, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = tok
	return nil
}

type testEnv struct {
	handler http.Handler
	mailbox *mailbox
}

func newTestEnv(t *testing.T, burst int) *testEnv {
	t.Helper()
	tokens, err := token.NewJWTManager("handler-secret", "HS256")
	require.NoError(t, err)

	box := &mailbox{}
	svc := authusecase.NewService(
		&memoryUsers{users: map[string]authdomain.User{}},
		tokens,
		password.NewBcryptHasher(bcrypt.MinCost),
		revocation.NewMemoryStore(),
		box,
	)
	cfg := config.Config{
		HTTPPort:           "0",
		AllowedOrigins:     []string{"*"},
		AuthRateLimitRPS:   1,
		AuthRateLimitBurst: burst,
	}
	srv := NewServer(cfg, svc, zerolog.Nop())
	return &testEnv{handler: srv.Handler(), mailbox: box}
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *strings.Reader
	if body == nil {
		payload = strings.NewReader("")
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var out tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var signup = map[string]string{
	"email":       "hikaru@example.com",
	"password":    "bongcloud-1",
	"chess_level": "Master",
}

func TestRegisterAndMe(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodPost, "/auth/register", "", signup)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pair := decodeTokens(t, rec)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	rec = env.do(t, http.MethodGet, "/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "hikaru@example.com", me["email"])
	assert.Equal(t, "Master", me["chess_level"])
	assert.NotContains(t, me, "password_hash")

	rec = env.do(t, http.MethodGet, "/users/me", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/register", "", signup)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginStatuses(t *testing.T) {
	env := newTestEnv(t, 100)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/auth/register", "", signup).Code)

	rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "hikaru@example.com", "password": "bongcloud-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "hikaru@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")

	rec = env.do(t, http.MethodGet, "/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	env.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	env := newTestEnv(t, 100)
	pair := decodeTokens(t, env.do(t, http.MethodPost, "/auth/register", "", signup))

	rec := env.do(t, http.MethodPost, "/auth/token/refresh", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeTokens(t, rec).AccessToken)

	rec = env.do(t, http.MethodPost, "/auth/token/refresh", pair.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/token/refresh", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/logout", pair.RefreshToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/token/refresh", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), authdomain.ErrTokenRevoked.Error())
}

func TestPasswordRecoveryFlow(t *testing.T) {
	env := newTestEnv(t, 100)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/auth/register", "", signup).Code)

	rec := env.do(t, http.MethodPost, "/auth/password/recovery", "", map[string]string{"email": "unknown@example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.mailbox.last)

	rec = env.do(t, http.MethodPost, "/auth/password/recovery", "", map[string]string{"email": "hikaru@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, env.mailbox.last)

	rec = env.do(t, http.MethodPost, "/auth/password/reset", "", map[string]string{"token": env.mailbox.last, "password": "london-system"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeTokens(t, rec).RefreshToken)

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "hikaru@example.com", "password": "london-system"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/password/reset", "", map[string]string{"token": "", "password": "london-system"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "long@example.com",
		"password": strings.Repeat("a", 80),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "72 bytes")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, 100)
	pair := decodeTokens(t, env.do(t, http.MethodPost, "/auth/register", "", signup))

	rec := env.do(t, http.MethodPut, "/users/me", pair.AccessToken, map[string]string{"chess_level": "Amateur"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Amateur", me["chess_level"])

	rec = env.do(t, http.MethodGet, "/users/me", pair.AccessToken, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Amateur", me["chess_level"])

	rec = env.do(t, http.MethodPut, "/users/me", pair.AccessToken, map[string]string{"chess_level": "Grandmaster"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/users/me", "", map[string]string{"chess_level": "Amateur"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodDelete, "/users/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, 100)
	pair := decodeTokens(t, env.do(t, http.MethodPost, "/auth/register", "", signup))

	rec := env.do(t, http.MethodPut, "/users/me/password", pair.AccessToken, map[string]string{
		"current_password": "wrong-guess",
		"new_password":     "grunfeld-defence",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "current password is incorrect")

	rec = env.do(t, http.MethodPut, "/users/me/password", pair.AccessToken, map[string]string{
		"current_password": "bongcloud-1",
		"new_password":     "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/users/me/password", pair.RefreshToken, map[string]string{
		"current_password": "bongcloud-1",
		"new_password":     "grunfeld-defence",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/users/me/password", pair.AccessToken, map[string]string{
		"current_password": "bongcloud-1",
		"new_password":     "grunfeld-defence",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "hikaru@example.com", "password": "grunfeld-defence"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "hikaru@example.com", "password": "bongcloud-1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, 2)
	creds := map[string]string{"email": "x@example.com", "password": "whatever1"}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/auth/login", "", creds).Code)
	rec := env.do(t, http.MethodPost, "/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t, 100)
	huge := fmt.Sprintf(`{"email":"a@b.c","password":"%s"}`, strings.Repeat("x", maxBodyBytes))
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(huge))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, 100)
	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://lessons.example")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://lessons.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{authdomain.ErrInvalidCredentials, http.StatusUnauthorized},
		{authdomain.ErrTokenExpired, http.StatusUnauthorized},
		{fmt.Errorf("%w: bad", authdomain.ErrTokenInvalid), http.StatusUnauthorized},
		{authdomain.ErrInvalidTokenType, http.StatusForbidden},
		{authdomain.ErrTokenRevoked, http.StatusForbidden},
		{authdomain.ErrUserExists, http.StatusConflict},
		{authdomain.ErrUserNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: jti", authdomain.ErrMissingClaims), http.StatusBadRequest},
		{fmt.Errorf("%w: short", authdomain.ErrInvalidInput), http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer  abc "))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken(""))
	assert.Empty(t, extractBearerToken("Bearer"))
}
