package postgres

import "errors"

var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("mfaauth/postgres: resource not found")
	// ErrDuplicateEmail is returned when an account with the same email already exists.
	ErrDuplicateEmail = errors.New("mfaauth/postgres: duplicate email")
)

// uniqueViolation is the SQLSTATE Postgres reports for unique constraint violations.
const uniqueViolation = "23505"
