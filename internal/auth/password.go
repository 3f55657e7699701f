package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Three digest schemes coexist in the password_hash column:
//
//   - bcrypt ("$2a$..."): written for every new or changed password.
//   - salted legacy ("<salt>$<hex sha256(salt+password)>"): written by the old
//     password-change flow.
//   - bare legacy ("<hex sha256(password)>"): written by the old registration flow.
//
// Verification dispatches on the stored value's shape. Legacy hashes are kept
// verbatim until the owner changes their password; they are never rewritten in
// place.

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a stored digest,
// dispatching on the digest scheme.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	switch {
	case strings.HasPrefix(hash, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	case strings.Contains(hash, "$"):
		return verifySaltedLegacy(hash, password)
	default:
		return verifyBareLegacy(hash, password)
	}
}

// SaltedLegacyHash produces the old password-change flow's digest. Retained for
// seed data and migration tests; new code writes bcrypt.
func SaltedLegacyHash(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return salt + "$" + hex.EncodeToString(sum[:])
}

// BareLegacyHash produces the old registration flow's digest.
func BareLegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func verifySaltedLegacy(hash, password string) error {
	salt, _, ok := strings.Cut(hash, "$")
	if !ok || salt == "" {
		return ErrInvalidCredentials
	}
	if !constantTimeEqual(hash, SaltedLegacyHash(salt, password)) {
		return ErrInvalidCredentials
	}
	return nil
}

func verifyBareLegacy(hash, password string) error {
	if !constantTimeEqual(hash, BareLegacyHash(password)) {
		return ErrInvalidCredentials
	}
	return nil
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
