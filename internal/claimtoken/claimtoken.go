// Package claimtoken issues and checks single-use redemption credentials.
//
// A raw token is 32 random bytes rendered as 64 lowercase hex characters.
// Only its SHA-256 digest (also 64 hex characters) is ever persisted.
package claimtoken

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	tokenBytes = 32
	// Length is the number of hex characters in a raw token and in its hash.
	Length = tokenBytes * 2
)

// Generate returns a fresh 256-bit token.
func Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate claim token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash returns the hex SHA-256 digest stored in place of the raw token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of token and compares it to storedHash in constant time.
func Verify(token, storedHash string) bool {
	got := Hash(token)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

// Last4 returns the final four characters, for display only.
func Last4(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[len(token)-4:]
}

// WellFormed reports whether s looks like a raw token (64 lowercase hex characters).
func WellFormed(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
