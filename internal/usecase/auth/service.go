package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "chesslessons/backend/internal/domain/auth"
	"chesslessons/backend/internal/obs"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	minPasswordLength = 8
	// bcrypt only looks at the first 72 bytes and x/crypto rejects anything longer.
	maxPasswordBytes = 72
)

// Service coordinates authentication workflows between domain and infrastructure.
type Service struct {
	users    domain.UserRepository
	tokens   TokenManager
	hasher   PasswordHasher
	revoked  domain.RevocationStore
	notifier RecoveryNotifier
	ttl      TTLs
	nowFunc  func() time.Time
	log      zerolog.Logger
}

// NewService constructs an auth service.
func NewService(
	users domain.UserRepository,
	tokens TokenManager,
	hasher PasswordHasher,
	revoked domain.RevocationStore,
	notifier RecoveryNotifier,
	opts ...Option,
) *Service {
	s := &Service{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		revoked:  revoked,
		notifier: notifier,
		ttl: TTLs{
			Access:   defaultAccessTTL,
			Refresh:  defaultRefreshTTL,
			Recovery: defaultRecoveryTTL,
		},
		nowFunc: time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput is the payload of a self-service sign up.
type RegisterInput struct {
	Email      string
	Password   string
	ChessLevel string
}

// Register creates a new account and signs it in.
func (s *Service) Register(ctx context.Context, input RegisterInput) (pair *domain.TokenPair, err error) {
	defer func() { s.observe("register", err) }()

	if _, err := s.CreateAccount(ctx, input, false); err != nil {
		return nil, err
	}
	return s.login(ctx, domain.Credentials{Email: input.Email, Password: input.Password})
}

// CreateAccount persists a new user and returns it without a password hash.
func (s *Service) CreateAccount(ctx context.Context, input RegisterInput, admin bool) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	level := domain.ChessLevel(strings.TrimSpace(input.ChessLevel))
	if level == "" {
		level = domain.LevelBeginner
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown chess level %q", domain.ErrInvalidInput, level)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashed,
		ChessLevel:   level,
		IsAdmin:      admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Bool("admin", admin).Msg("account created")
	return sanitizeUser(user), nil
}

// Login validates credentials and returns an access and refresh token pair.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (pair *domain.TokenPair, err error) {
	defer func() { s.observe("login", err) }()
	return s.login(ctx, creds)
}

func (s *Service) login(ctx context.Context, creds domain.Credentials) (*domain.TokenPair, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Verify(user.PasswordHash, creds.Password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	access, err := s.tokens.Issue(user, domain.KindAccess, s.ttl.Access)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(user, domain.KindRefresh, s.ttl.Refresh)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a live, unrevoked refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, token string) (access string, err error) {
	defer func() { s.observe("refresh", err) }()

	if err := s.pruneRevoked(ctx); err != nil {
		return "", err
	}

	claims, err := s.tokens.Decode(token)
	if err != nil {
		return "", err
	}
	if err := claims.Require(domain.KindRefresh); err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: jti", domain.ErrMissingClaims)
	}

	revoked, err := s.revoked.Contains(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return "", domain.ErrTokenRevoked
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(user, domain.KindAccess, s.ttl.Access)
}

// Logout revokes a refresh token until it expires.
// A token that has already expired is accepted as a no-op whatever its kind,
// since expiry is detected before the kind claim is read and there is nothing left to revoke.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	defer func() { s.observe("logout", err) }()

	if err := s.pruneRevoked(ctx); err != nil {
		return err
	}

	claims, err := s.tokens.Decode(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			s.log.Info().Msg("refresh token already expired, skipping revoke")
			return nil
		}
		return err
	}
	if err := claims.Require(domain.KindRefresh); err != nil {
		return err
	}
	if claims.ID == "" || claims.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: jti and exp are required", domain.ErrMissingClaims)
	}

	ttl := claims.ExpiresAt.Sub(s.nowFunc())
	if ttl <= 0 {
		s.log.Info().Str("jti", claims.ID).Msg("refresh token already expired, skipping revoke")
		return nil
	}

	if err := s.revoked.Add(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	s.log.Info().Str("jti", claims.ID).Dur("ttl", ttl).Msg("refresh token revoked")
	s.reportRevoked(ctx)
	return nil
}

// RequestPasswordRecovery issues a recovery token and hands it to the notifier.
// Unknown emails succeed silently so the endpoint cannot be used to probe accounts.
func (s *Service) RequestPasswordRecovery(ctx context.Context, email string) (err error) {
	defer func() { s.observe("password_recovery", err) }()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Debug().Msg("password recovery requested for unknown email")
			return nil
		}
		return err
	}

	token, err := s.tokens.Issue(user, domain.KindRecovery, s.ttl.Recovery)
	if err != nil {
		return err
	}
	return s.notifier.DeliverRecovery(ctx, sanitizeUser(user), token)
}

// ResetPassword sets a new password using a recovery token and signs the user in with it.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (pair *domain.TokenPair, err error) {
	defer func() { s.observe("password_reset", err) }()

	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	if err := claims.Require(domain.KindRecovery); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: id", domain.ErrMissingClaims)
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	user, err := s.users.UpdatePassword(ctx, claims.UserID, hashed, s.nowFunc().UTC())
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return s.login(ctx, domain.Credentials{Email: user.Email, Password: newPassword})
}

// ChangePassword replaces the password of a signed-in user after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	defer func() { s.observe("change_password", err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(user.PasswordHash, currentPassword); err != nil {
		return domain.ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from the current one", domain.ErrInvalidInput)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.users.UpdatePassword(ctx, user.ID, hashed, s.nowFunc().UTC()); err != nil {
		return err
	}
	s.log.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	ChessLevel string
}

// UpdateProfile changes the profile fields of a signed-in user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (user *domain.User, err error) {
	defer func() { s.observe("update_profile", err) }()

	level := domain.ChessLevel(strings.TrimSpace(input.ChessLevel))
	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown chess level %q", domain.ErrInvalidInput, level)
	}
	user, err = s.users.UpdateChessLevel(ctx, userID, level, s.nowFunc().UTC())
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// Authenticate validates an access token and returns the associated user.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	if err := claims.Require(domain.KindAccess); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: id", domain.ErrMissingClaims)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// RevokedCount reports the number of tracked revocations.
func (s *Service) RevokedCount(ctx context.Context) (int, error) {
	return s.revoked.Len(ctx)
}

func (s *Service) pruneRevoked(ctx context.Context) error {
	removed, err := s.revoked.Prune(ctx, s.nowFunc())
	if err != nil {
		return fmt.Errorf("pruning revoked tokens: %w", err)
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("cleaned up expired revoked tokens")
		s.reportRevoked(ctx)
	}
	return nil
}

func (s *Service) reportRevoked(ctx context.Context) {
	if n, err := s.revoked.Len(ctx); err == nil {
		obs.SetRevokedTokens(n)
	}
}

func (s *Service) observe(op string, err error) {
	obs.RecordAuth(op, Outcome(err))
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Msg("auth operation rejected")
	}
}

// Outcome classifies an auth error into a short stable label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrUserExists):
		return "user_exists"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, domain.ErrInvalidTokenType):
		return "invalid_token_type"
	case errors.Is(err, domain.ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, domain.ErrMissingClaims):
		return "missing_claims"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func sanitizeUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	copy := *u
	copy.PasswordHash = ""
	return &copy
}
