// Package security provides the credential primitives used by the auth service:
// bcrypt password hashing, TOTP enrollment and verification, signed session
// tokens and Redis-backed lockout tracking.
//
// Dependencies:
//   - golang.org/x/crypto/bcrypt: Password hashing
//   - github.com/pquerna/otp: TOTP secret generation and validation
//   - github.com/golang-jwt/jwt/v5: Session token signing
//   - github.com/redis/go-redis/v9: Failed attempt counters
//
// Thread Safety:
//   - All types are safe for concurrent use once constructed
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// MaxPasswordBytes is the longest password bcrypt operates on.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// PasswordHasher hashes and verifies passwords using bcrypt. Callers must not
// log or persist plaintext passwords.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher with the given bcrypt cost, clamped to the
// range bcrypt accepts. A non-positive cost selects DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost reports the bcrypt work factor.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash derives a salted bcrypt hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

// Verify compares password with a stored bcrypt hash. A mismatch returns
// (false, nil); a malformed hash returns an error. Passwords over
// MaxPasswordBytes can never have been hashed and never match.
func (h *PasswordHasher) Verify(password, hash string) (bool, error) {
	if len(password) > MaxPasswordBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt compare: %w", err)
	}
}
