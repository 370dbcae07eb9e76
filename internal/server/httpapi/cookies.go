package httpapi

import (
	"net/http"

	"github.com/cliptide/cliptide/internal/server/services"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// authCookie builds a cookie with the attributes shared by both tokens:
// HttpOnly always (no script access), Secure per configuration (TLS-only in
// production). Expiry is governed by the token itself, not the cookie.
func (s *Server) authCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) setAuthCookies(w http.ResponseWriter, pair *services.TokenPair) {
	http.SetCookie(w, s.authCookie(accessTokenCookie, pair.AccessToken))
	http.SetCookie(w, s.authCookie(refreshTokenCookie, pair.RefreshToken))
}

// clearAuthCookies expires both cookies using the same attributes they were
// set with, otherwise browsers keep the originals.
func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c := s.authCookie(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
