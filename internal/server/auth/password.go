package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost used for credentials and stored refresh
// tokens. 12 keeps offline brute force impractical at realistic request
// rates; tests lower it via config.
const DefaultHashCost = 12

// HashPassword returns a salted bcrypt hash of the secret.
func HashPassword(secret string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether candidate matches the stored hash. bcrypt's
// comparison is not correlated with which character mismatched, and the
// result carries no detail beyond match/no-match. The secret is never logged
// here or anywhere downstream.
func VerifyPassword(storedHash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate)) == nil
}

// tokenDigest pre-digests a signed token before bcrypt. bcrypt rejects inputs
// over 72 bytes and a signed refresh token always exceeds that.
func tokenDigest(token string) []byte {
	d := sha256.Sum256([]byte(token))
	return d[:]
}

// HashRefreshToken returns a salted bcrypt hash of the token's SHA-256
// digest. Only this hash is ever persisted; the plaintext token stays with
// the client.
func HashRefreshToken(token string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(tokenDigest(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyRefreshToken reports whether the presented token matches the stored
// hash, using the same slow comparator as credentials.
func VerifyRefreshToken(storedHash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), tokenDigest(token)) == nil
}
