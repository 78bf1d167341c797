package postgres

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a row in the accounts table.
type Account struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	MFASecret    string
	Grado        string
	Grupo        string
	CreatedAt    time.Time
}

// CreateAccountParams captures the fields required to insert an account.
// Email must already be normalized by the caller.
type CreateAccountParams struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	MFASecret    string
	Grado        string
	Grupo        string
}
