package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cliptide/cliptide/internal/common"
	"github.com/cliptide/cliptide/internal/dbx"
	"github.com/cliptide/cliptide/internal/server/auth"
	"github.com/cliptide/cliptide/internal/server/config"
	"github.com/cliptide/cliptide/internal/server/models"
	"github.com/cliptide/cliptide/internal/server/repositories/repomanager"
)

// UserService owns user-record operations the session subsystem collaborates
// with: registration, lookup by id, password change, and avatar updates.
type UserService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	hashCost int
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{db: db, repos: repos, hashCost: cfg.PasswordHashCost}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, username, email, fullName, password string) (*models.User, error) {
	passwordHash, err := auth.HashPassword(password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
	}
	u, err := s.repos.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// GetByID returns the user for an authenticated subject id, or
// common.ErrorNotFound when the account no longer exists.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return user, nil
}

// ChangePassword verifies the old secret and replaces the credential hash.
// The session is cleared in the same transaction, forcing re-login with the
// new password everywhere.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	if !auth.VerifyPassword(user.PasswordHash, oldPassword) {
		return common.ErrInvalidCredentials
	}

	newHash, err := auth.HashPassword(newPassword, s.hashCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdatePasswordHash(ctx, userID, newHash); err != nil {
			return err
		}
		return s.repos.Sessions(tx).Clear(ctx, userID)
	}); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// SetAvatarKey records the object key of a freshly uploaded avatar.
func (s *UserService) SetAvatarKey(ctx context.Context, userID, key string) error {
	if err := s.repos.Users(s.db).UpdateAvatarKey(ctx, userID, key); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}
