// Package events publishes committed reservation changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/scheduler"
)

// DefaultTopic receives every reservation lifecycle event.
const DefaultTopic = "room-reservations"

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures NewKafkaPublisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// KafkaPublisher implements application.EventPublisher. Messages are keyed by
// reservation ID so one reservation's events stay ordered on one partition.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	newID  func() string
	logger *slog.Logger
}

var _ application.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher builds a publisher writing to cfg.Brokers.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: at least one kafka broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return NewPublisherWithWriter(writer, cfg.Topic, cfg.Logger), nil
}

// NewPublisherWithWriter wraps an existing writer. The topic is only recorded
// on the messages when the writer has none of its own.
func NewPublisherWithWriter(writer MessageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: writer, topic: topic, newID: uuid.NewString, logger: logger}
}

// Publish writes one message per event in a single batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...application.ReservationEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := p.encode(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("events: writing %d messages: %w", len(msgs), err)
	}
	p.logger.DebugContext(ctx, "reservation events published", "count", len(msgs), "topic", p.topic)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) encode(event application.ReservationEvent) (kafka.Message, error) {
	payload := Envelope{
		EventID:     p.newID(),
		Type:        event.Type,
		OccurredAt:  event.OccurredAt.UTC(),
		ActorID:     event.ActorID,
		Reservation: reservationPayloadOf(event.Reservation),
	}
	for _, c := range event.Changes {
		payload.Changes = append(payload.Changes, ChangePayload{
			Field:     c.Field,
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
			Actor:     c.Actor,
			ChangedAt: c.Timestamp.UTC(),
		})
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: encoding %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.Reservation.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(payload.EventID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

// Envelope is the JSON body of every message.
type Envelope struct {
	EventID     string             `json:"event_id"`
	Type        string             `json:"event_type"`
	OccurredAt  time.Time          `json:"occurred_at"`
	ActorID     string             `json:"actor_id"`
	Reservation ReservationPayload `json:"reservation"`
	Changes     []ChangePayload    `json:"changes,omitempty"`
}

// ReservationPayload is the reservation state after the change.
type ReservationPayload struct {
	ID               string  `json:"id"`
	RoomID           string  `json:"room_id"`
	RequesterID      string  `json:"requester_id"`
	Date             string  `json:"date"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	MeetingTypeID    *string `json:"meeting_type_id,omitempty"`
	ParticipantCount int     `json:"participant_count"`
	Canceled         bool    `json:"canceled"`
	CancelReason     string  `json:"cancel_reason,omitempty"`
}

// ChangePayload mirrors one audit entry.
type ChangePayload struct {
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Actor     string    `json:"actor"`
	ChangedAt time.Time `json:"changed_at"`
}

func reservationPayloadOf(r scheduler.Reservation) ReservationPayload {
	return ReservationPayload{
		ID:               r.ID,
		RoomID:           r.RoomID,
		RequesterID:      r.RequesterID,
		Date:             r.Date.String(),
		StartTime:        r.Start.String(),
		EndTime:          r.End.String(),
		MeetingTypeID:    r.MeetingTypeID,
		ParticipantCount: r.ParticipantCount,
		Canceled:         r.Canceled,
		CancelReason:     r.CancelReason,
	}
}

// SplitBrokers parses a comma separated broker list, dropping blanks.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// HeaderValue returns the first header named key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
