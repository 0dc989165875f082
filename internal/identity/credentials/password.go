// Package credentials verifies passwords and TOTP codes.
package credentials

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when there is no real hash to check, so every login path
// pays one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("adminguard-timing-equalizer"), bcrypt.DefaultCost)

// HashPassword returns a bcrypt hash of plaintext.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plaintext matches hash. Malformed hashes never match.
func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// EqualizeTiming burns one bcrypt comparison. Callers use it on paths that reject without
// verifying a real password (unknown account, lockout).
func EqualizeTiming(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
}
