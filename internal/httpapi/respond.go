// Package httpapi holds the response helpers shared by the HTTP handlers and middleware.
package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/otherjamesbrown/mfa-auth-service/internal/errors"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Code    apperrors.Kind `json:"code"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto the taxonomy and writes its status and public message.
// Internal causes are never written.
func WriteError(w http.ResponseWriter, err error) {
	appErr := apperrors.From(err)
	WriteJSON(w, apperrors.HTTPStatus(appErr.Kind), ErrorResponse{
		Success: false,
		Message: appErr.Message,
		Code:    appErr.Kind,
	})
}
