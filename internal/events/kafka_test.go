package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/scheduler"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Parallel()

	writer := &recordingWriter{}
	publisher := NewPublisherWithWriter(writer, DefaultTopic, nil)
	ids := []string{"evt-1", "evt-2"}
	publisher.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	at := time.Date(2024, time.May, 6, 1, 0, 0, 0, time.UTC)
	reservation := scheduler.Reservation{
		ID:               "res-1",
		RoomID:           "R1",
		RequesterID:      "u-alice",
		Date:             scheduler.NewDate(2024, time.May, 6),
		Start:            scheduler.NewTimeOfDay(10, 0),
		End:              scheduler.NewTimeOfDay(11, 0),
		ParticipantCount: 3,
	}
	moved := reservation
	moved.ID = "res-2"

	err := publisher.Publish(context.Background(),
		application.ReservationEvent{Type: application.EventReservationCreated, Reservation: reservation, ActorID: "u-alice", OccurredAt: at},
		application.ReservationEvent{
			Type:        application.EventReservationUpdated,
			Reservation: moved,
			ActorID:     "u-bob",
			OccurredAt:  at,
			Changes:     []scheduler.ChangeEntry{{Timestamp: at, Field: scheduler.FieldStartTime, OldValue: "09:00", NewValue: "10:00", Actor: "u-bob"}},
		},
	)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(writer.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(writer.messages))
	}

	first := writer.messages[0]
	if string(first.Key) != "res-1" {
		t.Fatalf("expected reservation id key, got %q", first.Key)
	}
	if HeaderValue(first.Headers, "event_id") != "evt-1" || HeaderValue(first.Headers, "event_type") != application.EventReservationCreated {
		t.Fatalf("unexpected headers: %+v", first.Headers)
	}

	var envelope Envelope
	if err := json.Unmarshal(writer.messages[1].Value, &envelope); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if envelope.EventID != "evt-2" || envelope.Type != application.EventReservationUpdated || envelope.ActorID != "u-bob" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if envelope.Reservation.Date != "2024-05-06" || envelope.Reservation.StartTime != "10:00" || envelope.Reservation.EndTime != "11:00" {
		t.Fatalf("unexpected reservation payload: %+v", envelope.Reservation)
	}
	if len(envelope.Changes) != 1 || envelope.Changes[0].Field != scheduler.FieldStartTime {
		t.Fatalf("unexpected changes: %+v", envelope.Changes)
	}

	if err := publisher.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to be closed, err=%v", err)
	}
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	publisher := NewPublisherWithWriter(&recordingWriter{err: boom}, DefaultTopic, nil)
	err := publisher.Publish(context.Background(), application.ReservationEvent{Type: application.EventReservationCanceled})
	if !errors.Is(err, boom) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if err := publisher.Publish(context.Background()); err != nil {
		t.Fatalf("expected empty publish to be a no-op, got %v", err)
	}
}

func TestNewKafkaPublisher(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaPublisher(KafkaConfig{}); err == nil {
		t.Fatalf("expected missing brokers to fail")
	}
	publisher, err := NewKafkaPublisher(KafkaConfig{Brokers: SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")})
	if err != nil {
		t.Fatalf("NewKafkaPublisher failed: %v", err)
	}
	if publisher.topic != DefaultTopic {
		t.Fatalf("expected default topic, got %q", publisher.topic)
	}
	writer, ok := publisher.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("expected *kafka.Writer, got %T", publisher.writer)
	}
	if writer.Addr.String() != "kafka-1:9092,kafka-2:9092" {
		t.Fatalf("unexpected broker address %q", writer.Addr.String())
	}
}
