package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cliptide/cliptide/internal/common"
	"github.com/cliptide/cliptide/internal/server/auth"
	"github.com/cliptide/cliptide/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// UserFromContext returns the authenticated user placed on the context by
// Authenticator.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}

// bearerToken extracts the access token from the accessToken cookie or the
// Authorization header. The cookie takes precedence when both are present;
// the header path stays supported for non-browser clients.
func bearerToken(r *http.Request) string {
	if c, err := r.Cookie(accessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Authenticator gates protected routes: it validates the bearer token as an
// access token, loads the identified user, and attaches it to the request
// context. This path never reads the session store.
func (s *Server) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.unauthorized(w, r, errors.New("missing bearer token"))
			return
		}

		subjectID, err := s.sessions.Codec().Validate(token, auth.KindAccess)
		if err != nil {
			s.unauthorized(w, r, err)
			return
		}

		user, err := s.users.GetByID(r.Context(), subjectID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				// valid token for a deleted account
				s.unauthorized(w, r, err)
				return
			}
			s.serviceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
