// Package common defines shared constants and sentinel errors used across
// the cliptide server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	// ErrorConflict is returned by compare-and-swap style operations when
	// the stored value no longer matches the expected one.
	ErrorConflict = errors.New("conflict")

	// Client-facing error kinds.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")

	// ErrStoreUnavailable marks a failure to reach persistent storage.
	// It is retryable by the client and must never be collapsed into
	// ErrUnauthorized.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Token validation outcomes.
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenKindMismatch = errors.New("token kind mismatch")
)
