// Package audit provides audit event emission for the MFA auth service.
//
// Every registration and authentication outcome produces an Event. The
// Emitter interface abstracts the backend: KafkaEmitter streams events to a
// topic, LoggerEmitter writes them through zap when no broker is configured
// and NoopEmitter discards them in tests.
//
// Emitters must be safe for concurrent use. Callers treat emission as
// best-effort and never fail a request because an event could not be sent.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event represents an audit record for an authentication flow.
type Event struct {
	EventID   uuid.UUID      `json:"event_id"`
	AccountID *uuid.UUID     `json:"account_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	Action    string         `json:"action"`  // "account.register", "auth.login", "auth.otp"
	Outcome   string         `json:"outcome"` // "success", "failure"
	Stage     string         `json:"stage,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Hash      string         `json:"hash"`
	CreatedAt time.Time      `json:"created_at"`
}

// Emitter defines the interface for audit event emission.
type Emitter interface {
	// Emit sends an audit event. Returns an error if emission fails.
	Emit(ctx context.Context, event Event) error
}

// LoggerEmitter writes audit events as structured log entries.
type LoggerEmitter struct {
	logger *zap.Logger
}

// NewLoggerEmitter creates a logger-based audit emitter.
func NewLoggerEmitter(logger *zap.Logger) *LoggerEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggerEmitter{logger: logger.With(zap.String("component", "audit"))}
}

// Emit logs the audit event. Never fails.
func (e *LoggerEmitter) Emit(ctx context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID.String()),
		zap.String("action", event.Action),
		zap.String("outcome", event.Outcome),
		zap.String("email", event.Email),
	}
	if event.AccountID != nil {
		fields = append(fields, zap.String("account_id", event.AccountID.String()))
	}
	if event.Stage != "" {
		fields = append(fields, zap.String("stage", event.Stage))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip_address", event.IPAddress))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	e.logger.Info("audit event", fields...)
	return nil
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// NewNoopEmitter creates a no-op audit emitter.
func NewNoopEmitter() *NoopEmitter {
	return &NoopEmitter{}
}

// Emit discards the event.
func (e *NoopEmitter) Emit(ctx context.Context, event Event) error {
	return nil
}

// BuildEvent constructs an audit event and stamps its ID, creation time and hash.
func BuildEvent(action, outcome, email string, accountID *uuid.UUID) Event {
	event := Event{
		EventID:   uuid.New(),
		AccountID: accountID,
		Email:     email,
		Action:    action,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
	event.Hash = computeEventHash(event)
	return event
}

// WithRequest enriches an audit event with HTTP request metadata and
// recomputes its hash.
func WithRequest(event Event, r *http.Request) Event {
	event.IPAddress = clientIP(r)
	event.UserAgent = r.Header.Get("User-Agent")
	if event.Resource == "" {
		event.Resource = r.Method + " " + r.URL.Path
	}
	event.Hash = computeEventHash(event)
	return event
}

// Seal recomputes the event hash after fields were changed.
func Seal(event Event) Event {
	event.Hash = computeEventHash(event)
	return event
}

// computeEventHash computes the SHA256 of the event payload with the hash field cleared.
func computeEventHash(event Event) string {
	event.Hash = ""

	payload, err := json.Marshal(event)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", event))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// Action constants.
const (
	ActionAccountRegister = "account.register"
	ActionLogin           = "auth.login"
	ActionVerifyOTP       = "auth.otp"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
