package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig configures the Kafka audit emitter.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter publishes audit events to a Kafka topic, keyed by account email.
type KafkaEmitter struct {
	writer messageWriter
	logger *zap.Logger
	topic  string
	mu     sync.RWMutex
}

// NewKafkaEmitter creates a Kafka-backed audit emitter.
func NewKafkaEmitter(cfg KafkaConfig, logger *zap.Logger) (*KafkaEmitter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka audit emitter: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka audit emitter: topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: cfg.ClientID}
	}

	return newKafkaEmitter(writer, cfg.Topic, logger), nil
}

func newKafkaEmitter(writer messageWriter, topic string, logger *zap.Logger) *KafkaEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaEmitter{
		writer: writer,
		logger: logger.With(zap.String("component", "audit-kafka")),
		topic:  topic,
	}
}

// Emit publishes the event synchronously.
func (e *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	e.mu.RLock()
	writer := e.writer
	e.mu.RUnlock()

	if writer == nil {
		return fmt.Errorf("kafka writer is closed")
	}

	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		e.logger.Error("failed to publish audit event",
			zap.String("event_id", event.EventID.String()),
			zap.String("action", event.Action),
			zap.Error(err),
		)
		return fmt.Errorf("publish audit event: %w", err)
	}

	e.logger.Debug("audit event published",
		zap.String("event_id", event.EventID.String()),
		zap.String("topic", e.topic),
	)
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (e *KafkaEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writer == nil {
		return nil
	}
	err := e.writer.Close()
	e.writer = nil
	return err
}

func buildMessage(event Event) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serialize audit event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Email),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "action", Value: []byte(event.Action)},
			{Key: "outcome", Value: []byte(event.Outcome)},
		},
		Time: event.CreatedAt,
	}, nil
}
