// Package auth implements the token and credential primitives of the session
// subsystem: a codec for signed access/refresh JWTs and bcrypt-based hashing
// for passwords and stored refresh tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cliptide/cliptide/internal/common"
)

// Kind distinguishes the two token flavours the codec can mint.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	}
	return "unknown"
}

// Claims is the signed payload: registered claims (sub, jti, iat, exp) plus
// the token kind.
type Claims struct {
	jwt.RegisteredClaims
	TokenKind string `json:"tkn"`
}

// CodecConfig carries the signing material and lifetimes for both token
// kinds. Access and refresh secrets must differ: a leaked access-signing key
// must not be able to forge refresh tokens.
type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec issues and validates signed bearer tokens (HS256).
type Codec struct {
	cfg CodecConfig
}

func NewCodec(cfg CodecConfig) *Codec {
	return &Codec{cfg: cfg}
}

func (c *Codec) secretFor(kind string) ([]byte, error) {
	switch kind {
	case KindAccess.String():
		return c.cfg.AccessSecret, nil
	case KindRefresh.String():
		return c.cfg.RefreshSecret, nil
	}
	return nil, common.ErrTokenMalformed
}

func (c *Codec) ttlFor(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.cfg.RefreshTTL
	}
	return c.cfg.AccessTTL
}

// Issue produces a signed token of the given kind for subjectID, expiring
// after the configured TTL for that kind.
func (c *Codec) Issue(subjectID string, kind Kind) (string, error) {
	now := time.Now()
	// The jti makes every token unique; without it two refresh tokens for
	// the same subject minted within one second would be identical and
	// rotation could not tell them apart.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttlFor(kind))),
		},
		TokenKind: kind.String(),
	})

	secret, err := c.secretFor(kind.String())
	if err != nil {
		return "", err
	}

	return token.SignedString(secret)
}

// Validate checks the token's signature and expiry and that its kind matches
// expectedKind, returning the subject id on success.
//
// Failure modes, matched with errors.Is:
//   - common.ErrTokenMalformed: cannot parse or verify the signature
//   - common.ErrTokenExpired: signature valid, past expiry
//   - common.ErrTokenKindMismatch: valid token of the other kind
//
// The verification secret is chosen by the kind claimed inside the token, so
// a token of the wrong kind fails the kind check rather than the signature
// check. A token claiming one kind but signed with the other kind's secret
// fails verification outright.
func (c *Codec) Validate(tokenString string, expectedKind Kind) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secretFor(claims.TokenKind)
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrTokenMalformed
	}
	if !token.Valid {
		return "", common.ErrTokenMalformed
	}

	if claims.TokenKind != expectedKind.String() {
		return "", common.ErrTokenKindMismatch
	}

	return claims.Subject, nil
}
