// Package services contains server-side business logic. This file implements
// SessionService, which orchestrates the token lifecycle: credential
// verification at login, token-pair issuance, rotate-on-refresh with a
// hashed-at-rest session store, and revocation on logout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cliptide/cliptide/internal/common"
	"github.com/cliptide/cliptide/internal/server/auth"
	"github.com/cliptide/cliptide/internal/server/config"
	"github.com/cliptide/cliptide/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService provides the session state machine per user:
// NoSession → Active (login), Active → Active (refresh, token swapped),
// Active → NoSession (logout, or fail-secure teardown on refresh mismatch).
//
// The store keeps at most one refresh hash per user, so issuing a new pair
// always invalidates the previous refresh token, expired or not.
type SessionService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	codec    *auth.Codec
	hashCost int

	// dummyHash is compared against when the login identifier resolves to
	// nothing, so the absent-user path costs the same as a wrong secret.
	dummyHash string
}

// NewSessionService constructs a SessionService using repositories and
// server config.
func NewSessionService(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config) (*SessionService, error) {
	dummyHash, err := auth.HashPassword("dummy-password-for-timing-only", cfg.PasswordHashCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing dummy password: %w", err)
	}

	return &SessionService{
		db:    db,
		repos: repos,
		codec: auth.NewCodec(auth.CodecConfig{
			AccessSecret:  []byte(cfg.AccessTokenSecret),
			RefreshSecret: []byte(cfg.RefreshTokenSecret),
			AccessTTL:     cfg.AccessTokenValidityDuration,
			RefreshTTL:    cfg.RefreshTokenValidityDuration,
		}),
		hashCost:  cfg.PasswordHashCost,
		dummyHash: dummyHash,
	}, nil
}

// Codec exposes the token codec for the stateless access-token verification
// path (the request authenticator never touches the session store).
func (s *SessionService) Codec() *auth.Codec {
	return s.codec
}

// Login verifies the identifier/secret pair and, on success, issues a token
// pair and stores the refresh hash, overwriting any prior session. An absent
// user and a wrong secret both yield ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, identifier, secret string) (*TokenPair, error) {
	user, err := s.repos.Users(s.db).GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.VerifyPassword(s.dummyHash, secret)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	if !auth.VerifyPassword(user.PasswordHash, secret) {
		return nil, common.ErrInvalidCredentials
	}

	pair, refreshHash, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Sessions(s.db).Put(ctx, user.ID, refreshHash); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return pair, nil
}

// Refresh validates a presented refresh token, rotates it, and returns a
// fresh pair.
//
// A well-signed refresh token that does not match the stored hash implies
// reuse of a rotated-out token or theft; the session is torn down so the
// legitimate user must log in again (fail-secure). The hash swap itself is a
// compare-and-swap keyed by the previously read hash: of two concurrent
// refreshes with the same token, exactly one wins and the loser persists
// nothing.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	subjectID, err := s.codec.Validate(presented, auth.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}

	sessionsRepo := s.repos.Sessions(s.db)

	storedHash, err := sessionsRepo.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: no active session", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	if !auth.VerifyRefreshToken(storedHash, presented) {
		if err := sessionsRepo.Clear(ctx, subjectID); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("%w: refresh token reuse detected", common.ErrUnauthorized)
	}

	pair, newHash, err := s.issuePair(subjectID)
	if err != nil {
		return nil, err
	}

	if err := sessionsRepo.Replace(ctx, subjectID, storedHash, newHash); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, fmt.Errorf("%w: concurrent rotation lost", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return pair, nil
}

// Logout clears the stored refresh hash for the user. Idempotent: logging
// out without an active session succeeds.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.repos.Sessions(s.db).Clear(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionService) issuePair(userID string) (*TokenPair, string, error) {
	access, err := s.codec.Issue(userID, auth.KindAccess)
	if err != nil {
		return nil, "", fmt.Errorf("error issuing access token: %w", err)
	}
	refresh, err := s.codec.Issue(userID, auth.KindRefresh)
	if err != nil {
		return nil, "", fmt.Errorf("error issuing refresh token: %w", err)
	}
	refreshHash, err := auth.HashRefreshToken(refresh, s.hashCost)
	if err != nil {
		return nil, "", fmt.Errorf("error hashing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, refreshHash, nil
}
