// Package httpapi exposes the session subsystem over HTTP: login, refresh,
// and logout endpoints plus the bearer-token gate protecting everything else.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cliptide/cliptide/internal/logging"
	"github.com/cliptide/cliptide/internal/server/auth"
	"github.com/cliptide/cliptide/internal/server/models"
	"github.com/cliptide/cliptide/internal/server/services"
)

// SessionManager is the slice of the session service the transport needs.
type SessionManager interface {
	Login(ctx context.Context, identifier, secret string) (*services.TokenPair, error)
	Refresh(ctx context.Context, presented string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Codec() *auth.Codec
}

// UserDirectory is the user-store collaborator.
type UserDirectory interface {
	Register(ctx context.Context, username, email, fullName, password string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	SetAvatarKey(ctx context.Context, userID, key string) error
}

// MediaSigner is the media-storage collaborator.
type MediaSigner interface {
	GetPresignedPutURL(ctx context.Context, key string) (string, error)
	GetPresignedGetURL(ctx context.Context, key string) (string, error)
}

type Server struct {
	address       string
	logger        logging.Logger
	sessions      SessionManager
	users         UserDirectory
	media         MediaSigner
	secureCookies bool
}

func NewServer(address string, l logging.Logger, sm SessionManager, ud UserDirectory, ms MediaSigner, secureCookies bool) *Server {
	return &Server{
		address:       address,
		logger:        l.With("module", "http_server"),
		sessions:      sm,
		users:         ud,
		media:         ms,
		secureCookies: secureCookies,
	}
}

// Router builds the chi routing tree. Public endpoints first, then the
// protected group behind the Authenticator gate.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/ping", s.handlePing)
	r.Post("/api/v1/users/register", s.handleRegister)
	r.Post("/api/v1/users/login", s.handleLogin)
	r.Post("/api/v1/users/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.Authenticator)
		r.Post("/api/v1/users/logout", s.handleLogout)
		r.Get("/api/v1/users/me", s.handleMe)
		r.Post("/api/v1/users/change-password", s.handleChangePassword)
		r.Post("/api/v1/users/avatar-upload-url", s.handleAvatarUploadURL)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
