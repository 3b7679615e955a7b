package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	authdomain "chesslessons/backend/internal/domain/auth"
)

type errorResponse struct {
	Error string `json:"error"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writePair(w http.ResponseWriter, status int, pair *authdomain.TokenPair) {
	writeJSON(w, status, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

// statusFor maps auth errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrTokenExpired),
		errors.Is(err, authdomain.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, authdomain.ErrInvalidTokenType),
		errors.Is(err, authdomain.ErrTokenRevoked):
		return http.StatusForbidden
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, authdomain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, authdomain.ErrMissingClaims),
		errors.Is(err, authdomain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal server error")
		return
	}
	if errors.Is(err, authdomain.ErrInvalidCredentials) {
		writeError(w, status, "invalid email or password")
		return
	}
	writeError(w, status, err.Error())
}

// decodeJSON reads a JSON body into dst. It reports false after writing a 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body required")
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
		}
		return false
	}
	return true
}
