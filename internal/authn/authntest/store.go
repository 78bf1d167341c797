// Package authntest provides an in-memory AccountStore for tests.
package authntest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/mfa-auth-service/internal/storage/postgres"
)

// Store is a goroutine-safe in-memory account store keyed by email. It
// enforces email uniqueness at insert the same way the unique index does.
type Store struct {
	mu       sync.Mutex
	accounts map[string]postgres.Account

	// Err, when set, is returned by every method.
	Err error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{accounts: make(map[string]postgres.Account)}
}

// EmailExists implements authn.AccountStore.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.accounts[email]
	return ok, nil
}

// GetAccountByEmail implements authn.AccountStore.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (postgres.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return postgres.Account{}, s.Err
	}
	account, ok := s.accounts[email]
	if !ok {
		return postgres.Account{}, postgres.ErrNotFound
	}
	return account, nil
}

// CreateAccount implements authn.AccountStore.
func (s *Store) CreateAccount(ctx context.Context, params postgres.CreateAccountParams) (postgres.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return postgres.Account{}, s.Err
	}
	if _, ok := s.accounts[params.Email]; ok {
		return postgres.Account{}, postgres.ErrDuplicateEmail
	}
	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	account := postgres.Account{
		ID:           id,
		Email:        params.Email,
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		MFASecret:    params.MFASecret,
		Grado:        params.Grado,
		Grupo:        params.Grupo,
		CreatedAt:    time.Now().UTC(),
	}
	s.accounts[params.Email] = account
	return account, nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}
