// Package authn implements the credential verification core of the service:
// account registration, multi-factor login and standalone TOTP verification.
//
// The Service depends only on small interfaces so the storage backend and the
// cryptographic primitives can be swapped in tests. Every error it returns is
// an *errors.Error from internal/errors.
package authn

import (
	"context"
	"strings"

	"github.com/otherjamesbrown/mfa-auth-service/internal/security"
	"github.com/otherjamesbrown/mfa-auth-service/internal/storage/postgres"
)

// AccountStore is the minimal credential store needed by the service.
type AccountStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	GetAccountByEmail(ctx context.Context, email string) (postgres.Account, error)
	CreateAccount(ctx context.Context, params postgres.CreateAccountParams) (postgres.Account, error)
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// TOTPProvider generates TOTP secrets and verifies codes.
type TOTPProvider interface {
	Generate(accountName string) (security.TOTPEnrollment, error)
	Verify(secret, code string) (bool, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(accountID, username, email string) (security.IssuedToken, error)
}

// LockoutTracker counts failed attempts per identity.
type LockoutTracker interface {
	IsLocked(ctx context.Context, identity string) (bool, error)
	RegisterFailure(ctx context.Context, identity string) (int, bool, error)
	Reset(ctx context.Context, identity string) error
}

// NormalizeEmail returns the canonical form of an email address used for
// storage and every lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Stage is a step of the login state machine.
type Stage string

const (
	StageUnauthenticated Stage = "UNAUTHENTICATED"
	StagePasswordChecked Stage = "PASSWORD_CHECKED"
	StageMFAChecked      Stage = "MFA_CHECKED"
	StageTokenIssued     Stage = "TOKEN_ISSUED"
	StageRejected        Stage = "REJECTED"
)

// attempt records the stages an authentication attempt passes through.
type attempt struct {
	path []Stage
}

func newAttempt() *attempt {
	return &attempt{path: []Stage{StageUnauthenticated}}
}

func (a *attempt) advance(s Stage) {
	if a.current() == StageRejected || a.current() == StageTokenIssued {
		return
	}
	a.path = append(a.path, s)
}

func (a *attempt) reject() {
	a.advance(StageRejected)
}

func (a *attempt) current() Stage {
	return a.path[len(a.path)-1]
}

func (a *attempt) stages() []Stage {
	out := make([]Stage, len(a.path))
	copy(out, a.path)
	return out
}

func (a *attempt) String() string {
	parts := make([]string, len(a.path))
	for i, s := range a.path {
		parts[i] = string(s)
	}
	return strings.Join(parts, " -> ")
}
