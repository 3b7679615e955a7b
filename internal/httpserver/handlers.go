package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authdomain "chesslessons/backend/internal/domain/auth"
	"chesslessons/backend/internal/obs"
	authusecase "chesslessons/backend/internal/usecase/auth"
)

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.router.Handle("/metrics", obs.Handler())

	limited := s.authLimiter.middleware
	s.router.Handle("/auth/register", limited(http.HandlerFunc(s.handleRegister)))
	s.router.Handle("/auth/login", limited(http.HandlerFunc(s.handleLogin)))
	s.router.Handle("/auth/token/refresh", limited(http.HandlerFunc(s.handleRefresh)))
	s.router.Handle("/auth/logout", limited(http.HandlerFunc(s.handleLogout)))
	s.router.Handle("/auth/password/recovery", limited(http.HandlerFunc(s.handlePasswordRecovery)))
	s.router.Handle("/auth/password/reset", limited(http.HandlerFunc(s.handlePasswordReset)))

	s.router.Handle("/users/me", s.authMiddleware(http.HandlerFunc(s.handleMe)))
	s.router.Handle("/users/me/password", s.authMiddleware(http.HandlerFunc(s.handleChangePassword)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		ChessLevel string `json:"chess_level"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	pair, err := s.authService.Register(r.Context(), authusecase.RegisterInput{
		Email:      payload.Email,
		Password:   payload.Password,
		ChessLevel: payload.ChessLevel,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writePair(w, http.StatusCreated, pair)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	pair, err := s.authService.Login(r.Context(), authdomain.Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writePair(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	access, err := s.authService.Refresh(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	if err := s.authService.Logout(r.Context(), token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *Server) handlePasswordRecovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := s.authService.RequestPasswordRecovery(r.Context(), payload.Email); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "if the account exists, password recovery instructions have been sent",
	})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	token := strings.TrimSpace(payload.Token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	pair, err := s.authService.ResetPassword(r.Context(), token, payload.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writePair(w, http.StatusOK, pair)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut, http.MethodPatch:
		var payload struct {
			ChessLevel string `json:"chess_level"`
		}
		if !decodeJSON(w, r, &payload) {
			return
		}
		updated, err := s.authService.UpdateProfile(r.Context(), user.ID, authusecase.ProfileInput{
			ChessLevel: payload.ChessLevel,
		})
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPatch)
	}
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPut, http.MethodPost)
		return
	}

	user, ok := currentUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	err := s.authService.ChangePassword(r.Context(), user.ID, payload.CurrentPassword, payload.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		// 401 is reserved for the bearer token itself.
		writeError(w, http.StatusBadRequest, "current password is incorrect")
	default:
		s.writeServiceError(w, r, err)
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization token required")
			return
		}

		user, err := s.authService.Authenticate(r.Context(), token)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUserFromContext(ctx context.Context) (*authdomain.User, bool) {
	user, ok := ctx.Value(ctxKeyUser{}).(*authdomain.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

type ctxKeyUser struct{}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
