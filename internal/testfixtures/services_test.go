package testfixtures

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/application"
)

func TestServiceFactoryCreatesReservationWithDeterministicDependencies(t *testing.T) {
	factory := NewServiceFactory()
	harness := NewSQLiteHarness(t)
	harness.SeedRooms(t, NewRoomFixture(WithRoomID("room-001"), WithRoomCapacity(6)))

	svc := factory.NewReservationService(ReservationServiceDeps{
		Store:        harness.Store,
		Rooms:        harness.Rooms,
		MeetingTypes: harness.MeetingTypes,
	})

	fixture := NewReservationFixture(WithReservationRoom("room-001"))
	created, err := svc.CreateReservation(context.Background(), application.CreateReservationParams{
		Principal: fixture.Principal(),
		Input:     fixture.Input(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected one reservation, got %d", len(created))
	}
	if created[0].ID != "id-1" {
		t.Fatalf("expected deterministic id, got %s", created[0].ID)
	}
	if !created[0].CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected creation timestamp from factory clock, got %v", created[0].CreatedAt)
	}

	stored, err := harness.Storage.GetReservation(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("expected reservation to be stored: %v", err)
	}
	if stored.RequesterName != fixture.RequesterName {
		t.Fatalf("expected requester name %q, got %q", fixture.RequesterName, stored.RequesterName)
	}
}

func TestServiceFactoryConcurrentBookingsOfOneSlotAdmitOneWinner(t *testing.T) {
	factory := NewServiceFactory()
	harness := NewSQLiteHarness(t)
	harness.SeedRooms(t, NewRoomFixture(WithRoomID("room-001"), WithRoomCapacity(6)))

	svc := factory.NewReservationService(ReservationServiceDeps{
		Store:        harness.Store,
		Rooms:        harness.Rooms,
		MeetingTypes: harness.MeetingTypes,
	})

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fixture := NewReservationFixture(WithReservationRoom("room-001"))
			_, err := svc.CreateReservation(context.Background(), application.CreateReservationParams{
				Principal: fixture.Principal(),
				Input:     fixture.Input(),
			})
			mu.Lock()
			defer mu.Unlock()
			var conflict *application.ConflictError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &conflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", attempts-1, successes, conflicts)
	}
}

func TestServiceFactoryHonoursInjectedClockAndIDs(t *testing.T) {
	clock := NewClock(time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC))
	ids := NewIDGenerator("rsv")
	factory := NewServiceFactory(WithClock(clock), WithIDGenerator(ids))
	harness := NewSQLiteHarness(t)
	harness.SeedRooms(t, NewRoomFixture(WithRoomID("room-x"), WithRoomCapacity(4)))

	svc := factory.NewReservationService(ReservationServiceDeps{
		Store:        harness.Store,
		Rooms:        harness.Rooms,
		MeetingTypes: harness.MeetingTypes,
	})

	fixture := NewReservationFixture(
		WithReservationRoom("room-x"),
		WithReservationDate(ReferenceDate().AddDays(200)),
		WithReservationRequester("user-042", "Sato"),
		WithReservationParticipants(4),
	)
	created, err := svc.CreateReservation(context.Background(), application.CreateReservationParams{
		Principal: fixture.Principal(),
		Input:     fixture.Input(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := created[0]
	if got.ID != "rsv-1" || !got.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("expected injected id and clock, got %s at %v", got.ID, got.CreatedAt)
	}
	if got.RequesterID != "user-042" || got.RequesterName != "Sato" || got.ParticipantCount != 4 {
		t.Fatalf("unexpected requester details: %+v", got)
	}

	fixture = NewReservationFixture(
		WithReservationRoom("room-x"),
		WithReservationDate(ReferenceDate().AddDays(201)),
		WithReservationParticipants(5),
	)
	_, err = svc.CreateReservation(context.Background(), application.CreateReservationParams{
		Principal: fixture.Principal(),
		Input:     fixture.Input(),
	})
	if application.ErrorKind(err) != "validation" {
		t.Fatalf("expected capacity validation error, got %v", err)
	}
}
