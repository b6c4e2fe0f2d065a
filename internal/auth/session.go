package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var (
	// ErrInvalidSession is returned when a session token is invalid or expired.
	ErrInvalidSession = errors.New("invalid session token")
)

// GenerateSessionToken creates a secure random token and its persistable hash.
// The raw value travels inside the access JWT; only the hash is stored.
func GenerateSessionToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashSessionToken(raw)
	return raw, hashed, nil
}

// HashSessionToken produces a base64 SHA-256 hash.
func HashSessionToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
