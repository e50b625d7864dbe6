// Package cryptox wraps the hashing primitives used for user passwords and
// link secrets.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// prehash maps a secret of any length to 44 bytes, below bcrypt's 72-byte
// input limit, so long passphrases are neither rejected nor truncated.
func prehash(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// HashSecret returns a bcrypt hash of secret suitable for storage. Secrets
// of any length are accepted.
func HashSecret(secret []byte) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prehash(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CompareSecret reports whether candidate matches the stored bcrypt hash.
// An empty candidate never matches.
func CompareSecret(hash string, candidate []byte) bool {
	if len(candidate) == 0 || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(candidate)) == nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// BurnCompare performs a bcrypt comparison against a throwaway hash so that
// a missing account costs as much time as a wrong password.
func BurnCompare(candidate []byte) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword(prehash([]byte("guardshare-dummy")), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, prehash(candidate))
}

// EqualConstantTime compares two strings without leaking the position of
// the first mismatch. Empty strings never match.
func EqualConstantTime(expected, candidate string) bool {
	if expected == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}
