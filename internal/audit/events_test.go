package audit

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildEventStampsIDAndHash(t *testing.T) {
	id := uuid.New()
	event := BuildEvent(ActionAccountRegister, OutcomeSuccess, "ana@x.com", &id)

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, &id, event.AccountID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Len(t, event.Hash, 64)
	assert.Equal(t, event.Hash, computeEventHash(event))
}

func TestSealDetectsChanges(t *testing.T) {
	event := BuildEvent(ActionLogin, OutcomeFailure, "ana@x.com", nil)
	original := event.Hash

	event.Reason = "invalid_credentials"
	assert.NotEqual(t, original, computeEventHash(event))

	sealed := Seal(event)
	assert.Equal(t, computeEventHash(sealed), sealed.Hash)
}

func TestWithRequestCapturesClientMetadata(t *testing.T) {
	req := httptest.NewRequest("POST", "/login", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")

	event := WithRequest(BuildEvent(ActionLogin, OutcomeSuccess, "ana@x.com", nil), req)

	assert.Equal(t, "10.0.0.1", event.IPAddress)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.Equal(t, "POST /login", event.Resource)
	assert.Equal(t, computeEventHash(event), event.Hash)
}

func TestLoggerEmitterWritesEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	emitter := NewLoggerEmitter(zap.New(core))

	event := BuildEvent(ActionVerifyOTP, OutcomeFailure, "ana@x.com", nil)
	event.Reason = "invalid_otp"
	require.NoError(t, emitter.Emit(context.Background(), event))

	entries := logs.FilterMessage("audit event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, ActionVerifyOTP, fields["action"])
	assert.Equal(t, "invalid_otp", fields["reason"])
	assert.Equal(t, "audit", fields["component"])
}

func TestNoopEmitter(t *testing.T) {
	assert.NoError(t, NewNoopEmitter().Emit(context.Background(), Event{}))
}

func TestEnrichUsesRequestFromContext(t *testing.T) {
	event := BuildEvent(ActionLogin, OutcomeSuccess, "ana@x.com", nil)
	assert.Equal(t, event, Enrich(context.Background(), event))

	req := httptest.NewRequest("POST", "/verify-otp", nil)
	req.Header.Set("X-Real-IP", "192.168.1.9")
	enriched := Enrich(ContextWithRequest(context.Background(), req), event)
	assert.Equal(t, "192.168.1.9", enriched.IPAddress)
	assert.Equal(t, "POST /verify-otp", enriched.Resource)
}
