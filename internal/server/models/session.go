package models

import "time"

// Session is the one-per-user record of the currently valid refresh token.
// Only a bcrypt hash of the token is stored, never the plaintext.
type Session struct {
	UserID           string
	RefreshTokenHash string
	UpdatedAt        time.Time
}
