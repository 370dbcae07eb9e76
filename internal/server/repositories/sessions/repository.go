// Package sessions declares the session-store contract: one stored refresh
// token hash per user, with compare-and-swap replacement so rotation can
// never produce two simultaneously valid refresh tokens.
package sessions

import "context"

type Repository interface {
	// Put stores refreshTokenHash for userID, overwriting any previous
	// value. Idempotent.
	Put(ctx context.Context, userID string, refreshTokenHash string) error

	// Get returns the stored hash for userID, or common.ErrorNotFound when
	// the user has no active session.
	Get(ctx context.Context, userID string) (string, error)

	// Replace swaps oldHash for newHash in a single atomic statement. If the
	// stored hash no longer equals oldHash (a concurrent rotation or logout
	// won), it returns common.ErrorConflict and stores nothing.
	Replace(ctx context.Context, userID string, oldHash, newHash string) error

	// Clear removes the stored hash, invalidating any refresh token for the
	// user immediately. Clearing an absent session is not an error.
	Clear(ctx context.Context, userID string) error
}
