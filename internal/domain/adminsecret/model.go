package adminsecret

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cellule/internal/domain/errs"
)

// Path is the store path holding the shared admin secret.
const Path = "adminPassword"

// Fallback is used when the store has no secret or cannot be read.
const Fallback = "cmc2024"

// MinLength is the minimum length of a rotated secret.
const MinLength = 6

// bcryptCost matches the account hashing cost used elsewhere in the app.
const bcryptCost = 12

// Domain errors
var (
	ErrWrongSecret = errors.New("mot de passe incorrect")
)

// Matches reports whether submitted equals the stored secret.
// Stored values are either bcrypt hashes (written by Hash) or legacy plaintext.
// PRE: stored is the value read from Path, or Fallback
// POST: Returns true only on an exact match
func Matches(stored, submitted string) bool {
	if submitted == "" {
		return false
	}
	if isHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// ValidateRotation enforces the rotation rules before anything is written.
// PRE: stored is the current stored secret (or Fallback)
// POST: Returns ErrWrongSecret or *errs.ValidationError on failure
// INVARIANT: current must match, next must be at least MinLength, confirm must equal next
func ValidateRotation(stored, current, next, confirm string) error {
	if !Matches(stored, current) {
		return ErrWrongSecret
	}
	if len(next) < MinLength {
		return errs.Invalid("newPassword", "le nouveau mot de passe doit contenir au moins 6 caractères")
	}
	if next != confirm {
		return errs.Invalid("confirmPassword", "les mots de passe ne correspondent pas")
	}
	return nil
}

// Hash returns the bcrypt hash persisted for a new secret.
// PRE: secret has passed ValidateRotation
// POST: Returns a bcrypt hash accepted by Matches
func Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
