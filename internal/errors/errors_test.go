package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWrapsGenericError(t *testing.T) {
	cause := stderrors.New("connection reset")
	e := From(cause)

	require.NotNil(t, e)
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, "internal server error", e.Message)
	assert.ErrorIs(t, e, cause)
}

func TestFromKeepsTaxonomyError(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", Conflict("user already exists"))

	e := From(wrapped)
	assert.Equal(t, KindConflict, e.Kind)
	assert.Equal(t, "user already exists", e.Message)
}

func TestIsMatchesKindAndMessage(t *testing.T) {
	sentinel := Authentication("invalid credentials")

	assert.ErrorIs(t, fmt.Errorf("login: %w", Authentication("invalid credentials")), sentinel)
	assert.NotErrorIs(t, Authentication("invalid OTP code"), sentinel)
	assert.NotErrorIs(t, Validation("invalid credentials"), sentinel)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(NotFound("user not found")))
	assert.Equal(t, KindInternal, KindOf(stderrors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindNotFound, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
		{Kind("bogus"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	e := Internal(stderrors.New("disk full"))
	assert.Contains(t, e.Error(), "disk full")
	assert.Equal(t, "VALIDATION: email is required", Validation("email is required").Error())
}
