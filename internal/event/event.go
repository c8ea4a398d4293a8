// Package event publishes the engine's integration events. Downstream
// consumers (notifications, messaging, analytics) react to likes and
// matches without the engine knowing about them.
package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/metrics"
)

// Event types emitted by the engine.
const (
	TypeLikeReceived = "like.received"
	TypeMatchCreated = "match.created"
	TypeMatchEnded   = "match.ended"
)

// Event is one integration event. IDs are generated at emit time so
// consumers can deduplicate redelivery.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// New builds an event with a fresh id, marshaling the payload. Marshal
// failures are programmer errors on our own payload structs and panic.
func New(eventType string, payload any) Event {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    b,
	}
}

// LikePayload accompanies TypeLikeReceived.
type LikePayload struct {
	ActorID  uint64 `json:"actor_id"`
	TargetID uint64 `json:"target_id"`
	Action   string `json:"action"`
}

// MatchPayload accompanies TypeMatchCreated and TypeMatchEnded. Match
// events are addressed: each side of the pair gets its own event so
// notification fan-out stays trivial downstream.
type MatchPayload struct {
	UserID    uint64  `json:"user_id"`
	PartnerID uint64  `json:"partner_id"`
	Score     float64 `json:"score,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// Sink delivers events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
	Close() error
}

// KafkaSink publishes events to a Kafka topic, keyed by event type so each
// type preserves its relative order within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaSink(cfg *config.Config, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

func (s *KafkaSink) Emit(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Type),
		Value: value,
	}); err != nil {
		s.logger.Error("kafka emit failed", "type", ev.Type, "event_id", ev.ID, "error", err)
		return err
	}
	metrics.EventsEmitted.WithLabelValues(ev.Type).Inc()
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink writes events to the log. Default when Kafka is disabled, and
// handy in development.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, ev Event) error {
	s.logger.Info("event emitted",
		"type", ev.Type,
		"event_id", ev.ID,
		"payload", string(ev.Payload),
	)
	metrics.EventsEmitted.WithLabelValues(ev.Type).Inc()
	return nil
}

func (s *LogSink) Close() error { return nil }

// NewSink picks the configured sink implementation.
func NewSink(cfg *config.Config, logger *slog.Logger) Sink {
	if cfg.Kafka.Enabled {
		return NewKafkaSink(cfg, logger)
	}
	return NewLogSink(logger)
}
