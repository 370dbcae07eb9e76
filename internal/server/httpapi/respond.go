package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cliptide/cliptide/internal/common"
)

const maxBodyBytes = 1 << 20

var (
	errNoRefreshToken = errors.New("no refresh token presented")
	errNoIdentity     = errors.New("no authenticated identity on context")
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// unauthorized writes the one uniform 401 body. The underlying reason goes
// to the server log only, so responses leak nothing about why a token was
// rejected (expired vs malformed vs missing vs revoked).
func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, reason error) {
	s.logger.Warn(r.Context(), "request unauthorized", "path", r.URL.Path, "reason", reason.Error())
	writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
}

// serviceError maps a session/user service failure onto the client-facing
// taxonomy: invalid credentials and unauthorized are both uniform 401s,
// store unavailability is a retryable 503 and must never look like an auth
// failure.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		s.logger.Warn(r.Context(), "invalid credentials", "path", r.URL.Path)
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	case errors.Is(err, common.ErrUnauthorized):
		s.unauthorized(w, r, err)
	case errors.Is(err, common.ErrorConflict):
		writeError(w, http.StatusConflict, "conflict", "username or email already taken")
	case errors.Is(err, common.ErrStoreUnavailable):
		s.logger.Error(r.Context(), "store unavailable", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary failure, retry later")
	default:
		s.logger.Error(r.Context(), "internal error", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
