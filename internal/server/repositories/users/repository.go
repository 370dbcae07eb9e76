// Package users declares the repository contract for user records. The
// session subsystem reads users by id or login identifier and writes back
// credential and avatar fields.
package users

import (
	"context"

	"github.com/cliptide/cliptide/internal/server/models"
)

type Repository interface {
	// Create inserts a new user and returns it with the generated id.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns the user with the given id, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByIdentifier resolves a login identifier that may be either a
	// username or an email address, or returns common.ErrorNotFound.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)

	// UpdatePasswordHash replaces the stored credential hash.
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error

	// UpdateAvatarKey replaces the user's avatar object key.
	UpdateAvatarKey(ctx context.Context, id string, avatarKey string) error
}
