// Package auth provides the HTTP handlers for registration, login, OTP
// verification and session inspection.
//
// Handlers decode JSON bodies, delegate to authn.Service and translate its
// taxonomy errors into the standard error body. Request metadata is attached
// to the context so audit events carry the caller's address and user agent.
package auth

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/otherjamesbrown/mfa-auth-service/internal/audit"
	"github.com/otherjamesbrown/mfa-auth-service/internal/authn"
	apperrors "github.com/otherjamesbrown/mfa-auth-service/internal/errors"
	"github.com/otherjamesbrown/mfa-auth-service/internal/httpapi"
	"github.com/otherjamesbrown/mfa-auth-service/internal/httpapi/middleware"
)

// maxBodyBytes caps request bodies accepted by the JSON endpoints.
const maxBodyBytes = 1 << 20

var errInvalidPayload = apperrors.Validation("invalid request payload")

// Options configure the auth handlers.
type Options struct {
	Service     *authn.Service
	Verifier    middleware.TokenVerifier
	Logger      *zap.Logger
	ServiceName string
	Environment string
}

// Handler serves the authentication endpoints.
type Handler struct {
	service     *authn.Service
	logger      *zap.Logger
	serviceName string
	environment string
}

// RegisterRoutes mounts the authentication routes on router.
func RegisterRoutes(router chi.Router, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		service:     opts.Service,
		logger:      logger.With(zap.String("component", "http-auth")),
		serviceName: opts.ServiceName,
		environment: opts.Environment,
	}

	router.Post("/register", h.Register)
	router.Post("/login", h.Login)
	router.Post("/verify-otp", h.VerifyOTP)
	router.Get("/info", h.Info)
	router.With(middleware.RequireSession(opts.Verifier, logger)).Get("/session", h.Session)
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	// Grado and Grupo are kept raw so non-string values can be rejected explicitly.
	Grado any `json:"grado"`
	Grupo any `json:"grupo"`
}

type registerResponse struct {
	Message string `json:"message"`
	Secret  string `json:"secret"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type tokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type infoResponse struct {
	Service     string `json:"service"`
	Environment string `json:"environment"`
	GoVersion   string `json:"goVersion"`
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.logger.Debug("invalid register payload", zap.Error(err))
		httpapi.WriteError(w, errInvalidPayload)
		return
	}

	if payload.Email == "" || payload.Username == "" || payload.Password == "" || isBlank(payload.Grado) || isBlank(payload.Grupo) {
		httpapi.WriteError(w, authn.ErrMissingRegisterFields)
		return
	}
	grado, gradoOK := payload.Grado.(string)
	grupo, grupoOK := payload.Grupo.(string)
	if !gradoOK || !grupoOK {
		httpapi.WriteError(w, authn.ErrInvalidProfileFields)
		return
	}

	ctx := audit.ContextWithRequest(r.Context(), r)
	result, err := h.service.Register(ctx, authn.RegisterInput{
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
		Grado:    grado,
		Grupo:    grupo,
	})
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, registerResponse{
		Message: result.Message,
		Secret:  result.ProvisioningURI,
	})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.logger.Debug("invalid login payload", zap.Error(err))
		httpapi.WriteError(w, errInvalidPayload)
		return
	}

	ctx := audit.ContextWithRequest(r.Context(), r)
	session, err := h.service.Login(ctx, authn.LoginInput{
		Email:    payload.Email,
		Password: payload.Password,
		Token:    payload.Token,
	})
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, tokenResponse{Success: true, Token: session.Token})
}

// VerifyOTP handles POST /verify-otp.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload verifyOTPRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		h.logger.Debug("invalid verify-otp payload", zap.Error(err))
		httpapi.WriteError(w, errInvalidPayload)
		return
	}

	ctx := audit.ContextWithRequest(r.Context(), r)
	session, err := h.service.VerifyOTP(ctx, authn.VerifyOTPInput{
		Email: payload.Email,
		Token: payload.Token,
	})
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, tokenResponse{Success: true, Token: session.Token})
}

// Session handles GET /session and echoes the verified token claims.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, apperrors.Authentication("invalid or expired token"))
		return
	}

	resp := sessionResponse{
		ID:       claims.AccountID,
		Username: claims.Username,
		Email:    claims.Email,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

// Info handles GET /info.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, infoResponse{
		Service:     h.serviceName,
		Environment: h.environment,
		GoVersion:   runtime.Version(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// isBlank reports whether a raw JSON value is absent or falsy.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	default:
		return false
	}
}
