package testfixtures

import (
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/scheduler"
)

func TestReservationFixtureDefaults(t *testing.T) {
	t.Parallel()

	fixture := NewReservationFixture()
	if fixture.RoomID != "room-001" || fixture.RequesterID != "user-001" {
		t.Fatalf("unexpected identity: %+v", fixture)
	}
	if fixture.Date != ReferenceDate() {
		t.Fatalf("expected ReferenceDate, got %s", fixture.Date)
	}
	if fixture.Start.String() != "10:00" || fixture.End.String() != "11:00" {
		t.Fatalf("unexpected interval %s-%s", fixture.Start, fixture.End)
	}
}

func TestReservationFixtureConversions(t *testing.T) {
	t.Parallel()

	canceledAt := ReferenceTime().Add(time.Hour)
	fixture := NewReservationFixture(
		WithReservationID("res-x"),
		WithReservationTimes("13:30", "24:00"),
		WithReservationMeetingType("mt-1"),
		WithReservationCanceled(canceledAt, "moved"),
		WithReservationHistory(scheduler.ChangeEntry{Timestamp: canceledAt, Field: "canceled", OldValue: "false", NewValue: "true", Actor: "user-001"}),
	)

	domain := fixture.Domain()
	if domain.ID != "res-x" || domain.Start.String() != "13:30" || domain.End.String() != "24:00" {
		t.Fatalf("unexpected domain reservation: %+v", domain)
	}
	if domain.Active() {
		t.Fatalf("expected canceled reservation to be inactive")
	}

	model := fixture.Persistence()
	if model.Date != fixture.Date.String() || model.StartMinute != 13*60+30 || model.EndMinute != 24*60 {
		t.Fatalf("unexpected persistence model: %+v", model)
	}
	if len(model.History) != 1 || !model.History[0].ChangedAt.Equal(canceledAt) {
		t.Fatalf("unexpected history: %+v", model.History)
	}
	if *model.MeetingTypeID != "mt-1" {
		t.Fatalf("expected meeting type mt-1, got %v", model.MeetingTypeID)
	}

	input := fixture.Input()
	if input.StartTime != "13:30" || input.EndTime != "24:00" || input.Recurrence.Count != 1 {
		t.Fatalf("unexpected input: %+v", input)
	}
}

func TestRoomAndMeetingTypeFixtures(t *testing.T) {
	t.Parallel()

	room := NewRoomFixture(WithRoomID("r-1"), WithRoomName("Orion"), WithRoomCapacity(8), WithRoomInactive())
	if got := room.Domain(); got.ID != "r-1" || got.Name != "Orion" || got.Capacity != 8 || got.Active {
		t.Fatalf("unexpected room: %+v", got)
	}
	if got := room.Persistence(); got.Active || got.Capacity != 8 {
		t.Fatalf("unexpected persistence room: %+v", got)
	}

	mt := NewMeetingTypeFixture(WithMeetingTypeID("mt-9"), WithMeetingTypeInactive())
	if got := mt.Domain(); got.ID != "mt-9" || got.Active {
		t.Fatalf("unexpected meeting type: %+v", got)
	}
}
