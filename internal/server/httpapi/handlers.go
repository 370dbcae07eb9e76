package httpapi

import (
	"net/http"
	"strings"

	"github.com/cliptide/cliptide/internal/server/models"
	"github.com/cliptide/cliptide/internal/server/services"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// userView is the non-sensitive projection of a user record returned to
// clients. Credential and token fields never appear here.
type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func viewOf(u *models.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName}
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username, email and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), strings.ToLower(req.Username), req.Email, req.FullName, req.Password)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "username", user.Username)
	writeJSON(w, http.StatusCreated, viewOf(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identifier and password are required")
		return
	}

	pair, err := s.sessions.Login(r.Context(), identifier, req.Password)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}

	s.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged in"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// cookie first, body fallback for non-browser clients
	var presented string
	if c, err := r.Cookie(refreshTokenCookie); err == nil && c.Value != "" {
		presented = c.Value
	} else {
		var req refreshRequest
		if err := decodeJSON(r, &req); err == nil {
			presented = req.RefreshToken
		}
	}
	if presented == "" {
		s.unauthorized(w, r, errNoRefreshToken)
		return
	}

	pair, err := s.sessions.Refresh(r.Context(), presented)
	if err != nil {
		// cookies stay untouched: the client treats this as a forced logout
		s.serviceError(w, r, err)
		return
	}

	s.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		s.unauthorized(w, r, errNoIdentity)
		return
	}

	if err := s.sessions.Logout(r.Context(), user.ID); err != nil {
		s.serviceError(w, r, err)
		return
	}

	s.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		s.unauthorized(w, r, errNoIdentity)
		return
	}

	view := viewOf(user)
	if user.AvatarKey != "" {
		url, err := s.media.GetPresignedGetURL(r.Context(), user.AvatarKey)
		if err != nil {
			s.logger.Warn(r.Context(), "avatar presign failed", "error", err.Error())
		} else {
			view.AvatarURL = url
		}
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		s.unauthorized(w, r, errNoIdentity)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "old and new passwords are required")
		return
	}

	if err := s.users.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		s.serviceError(w, r, err)
		return
	}

	// the session was revoked together with the old password
	s.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (s *Server) handleAvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		s.unauthorized(w, r, errNoIdentity)
		return
	}

	key := services.AvatarStorageKey(user.ID)
	url, err := s.media.GetPresignedPutURL(r.Context(), key)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if err := s.users.SetAvatarKey(r.Context(), user.ID, key); err != nil {
		s.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "uploadUrl": url})
}
