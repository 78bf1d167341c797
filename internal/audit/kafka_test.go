package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   int
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func TestKafkaEmitterPublishesEvent(t *testing.T) {
	writer := &recordingWriter{}
	emitter := newKafkaEmitter(writer, "audit.auth", nil)

	event := BuildEvent(ActionLogin, OutcomeSuccess, "ana@x.com", nil)
	require.NoError(t, emitter.Emit(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, []byte("ana@x.com"), msg.Key)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, event.Hash, decoded.Hash)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, ActionLogin, headers["action"])
	assert.Equal(t, OutcomeSuccess, headers["outcome"])
}

func TestKafkaEmitterWrapsWriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	emitter := newKafkaEmitter(writer, "audit.auth", nil)

	err := emitter.Emit(context.Background(), BuildEvent(ActionLogin, OutcomeFailure, "ana@x.com", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaEmitterCloseIsIdempotent(t *testing.T) {
	writer := &recordingWriter{}
	emitter := newKafkaEmitter(writer, "audit.auth", nil)

	require.NoError(t, emitter.Close())
	require.NoError(t, emitter.Close())
	assert.Equal(t, 1, writer.closed)

	err := emitter.Emit(context.Background(), BuildEvent(ActionLogin, OutcomeSuccess, "ana@x.com", nil))
	assert.EqualError(t, err, "kafka writer is closed")
}

func TestNewKafkaEmitterValidatesConfig(t *testing.T) {
	_, err := NewKafkaEmitter(KafkaConfig{Topic: "audit.auth"}, nil)
	require.Error(t, err)

	_, err = NewKafkaEmitter(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.Error(t, err)

	emitter, err := NewKafkaEmitter(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "audit.auth", ClientID: "mfa"}, nil)
	require.NoError(t, err)
	require.NoError(t, emitter.Close())
}
