// Package token mints opaque bearer tokens and their SHA-256 digests.
// Only digests are ever persisted.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const rawBytes = 32

// Mint returns a fresh raw token (64 lowercase hex chars) and its digest.
func Mint() (raw string, hash string, err error) {
	buf := make([]byte, rawBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, Hash(raw), nil
}

// Hash returns the lowercase hex SHA-256 of raw.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether candidate hashes to storedHash, in constant time.
func Verify(candidate, storedHash string) bool {
	computed := Hash(candidate)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
