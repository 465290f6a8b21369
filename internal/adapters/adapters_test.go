package adapters_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/adapters"
	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/persistence/memory"
	"github.com/example/room-scheduler/internal/scheduler"
	"github.com/example/room-scheduler/internal/testfixtures"
)

func TestReservationStore_InsertAndUpdateRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := adapters.NewReservationStore(memory.Open())
	fixture := testfixtures.NewReservationFixture(
		testfixtures.WithReservationID("res-1"),
		testfixtures.WithReservationMeetingType("mt-1"),
		testfixtures.WithReservationNotes("kickoff"),
	)

	err := store.WithinTransaction(ctx, func(ctx context.Context, tx application.ReservationTx) error {
		if err := tx.LockRoomDay(ctx, fixture.RoomID, fixture.Date); err != nil {
			return err
		}
		return tx.InsertBatch(ctx, []scheduler.Reservation{fixture.Domain()})
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetReservation(ctx, "res-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Date != fixture.Date || got.Start != fixture.Start || got.End != fixture.End {
		t.Fatalf("unexpected schedule: %+v", got)
	}
	if got.MeetingTypeID == nil || *got.MeetingTypeID != "mt-1" || got.Notes != "kickoff" {
		t.Fatalf("unexpected details: %+v", got)
	}

	at := testfixtures.ReferenceTime().Add(2 * time.Hour)
	var updated scheduler.Reservation
	err = store.WithinTransaction(ctx, func(ctx context.Context, tx application.ReservationTx) error {
		var err error
		updated, err = tx.UpdateFields(ctx, "res-1", application.ReservationFields{
			RoomID:           got.RoomID,
			Date:             got.Date,
			Start:            scheduler.NewTimeOfDay(14, 0),
			End:              scheduler.NewTimeOfDay(15, 0),
			ParticipantCount: 3,
			Notes:            got.Notes,
			UpdatedAt:        at,
			AppendHistory: []scheduler.ChangeEntry{
				{Timestamp: at, Field: "startTime", OldValue: "10:00", NewValue: "14:00", Actor: "user-001"},
			},
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Start.String() != "14:00" || updated.ParticipantCount != 3 || updated.MeetingTypeID != nil {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if len(updated.ChangeHistory) != 1 || updated.ChangeHistory[0].Field != "startTime" || !updated.ChangeHistory[0].Timestamp.Equal(at) {
		t.Fatalf("unexpected history: %+v", updated.ChangeHistory)
	}
	if !updated.UpdatedAt.Equal(at) || !updated.CreatedAt.Equal(fixture.CreatedAt) {
		t.Fatalf("unexpected timestamps: %+v", updated)
	}
}

func TestReservationStore_ListFiltersByDate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.Open()
	store := adapters.NewReservationStore(storage)
	day := testfixtures.ReferenceDate()
	canceledAt := testfixtures.ReferenceTime()

	models := []persistence.Reservation{
		testfixtures.NewReservationFixture(testfixtures.WithReservationID("a"), testfixtures.WithReservationDate(day)).Persistence(),
		testfixtures.NewReservationFixture(testfixtures.WithReservationID("b"), testfixtures.WithReservationDate(day.AddDays(1))).Persistence(),
		testfixtures.NewReservationFixture(testfixtures.WithReservationID("c"), testfixtures.WithReservationDate(day),
			testfixtures.WithReservationTimes("12:00", "13:00"),
			testfixtures.WithReservationCanceled(canceledAt, "")).Persistence(),
	}
	if err := storage.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
		return tx.InsertReservations(ctx, models)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name   string
		filter application.ReservationFilter
		want   []string
	}{
		{name: "every date", filter: application.ReservationFilter{}, want: []string{"a", "b"}},
		{name: "one date", filter: application.ReservationFilter{Date: day}, want: []string{"a"}},
		{name: "canceled included", filter: application.ReservationFilter{Date: day, IncludeCanceled: true}, want: []string{"a", "c"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := store.ListReservations(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, got)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestReservationStore_GetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := adapters.NewReservationStore(memory.Open())
	if _, err := store.GetReservation(context.Background(), "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.Open()
	rooms := []testfixtures.RoomFixture{
		testfixtures.NewRoomFixture(testfixtures.WithRoomID("r-1"), testfixtures.WithRoomName("A")),
		testfixtures.NewRoomFixture(testfixtures.WithRoomID("r-2"), testfixtures.WithRoomName("B"), testfixtures.WithRoomInactive()),
	}
	for _, r := range rooms {
		if err := storage.UpsertRoom(ctx, r.Persistence()); err != nil {
			t.Fatalf("seed room: %v", err)
		}
	}
	types := []testfixtures.MeetingTypeFixture{
		testfixtures.NewMeetingTypeFixture(testfixtures.WithMeetingTypeID("mt-1")),
		testfixtures.NewMeetingTypeFixture(testfixtures.WithMeetingTypeID("mt-2"), testfixtures.WithMeetingTypeInactive()),
	}
	for _, mt := range types {
		if err := storage.UpsertMeetingType(ctx, mt.Persistence()); err != nil {
			t.Fatalf("seed meeting type: %v", err)
		}
	}

	roomCatalog := adapters.NewRoomCatalog(storage)
	active, err := roomCatalog.ListActiveRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(active) != 1 || active[0].ID != "r-1" {
		t.Fatalf("expected only r-1, got %+v", active)
	}

	inactive, err := roomCatalog.GetRoom(ctx, "r-2")
	if err != nil {
		t.Fatalf("get inactive room: %v", err)
	}
	if inactive.Active {
		t.Fatalf("expected inactive room to be reported as inactive")
	}
	if _, err := roomCatalog.GetRoom(ctx, "r-9"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	activeTypes, err := adapters.NewMeetingTypeCatalog(storage).ListActiveTypes(ctx)
	if err != nil {
		t.Fatalf("list meeting types: %v", err)
	}
	if len(activeTypes) != 1 || activeTypes[0].ID != "mt-1" {
		t.Fatalf("expected only mt-1, got %+v", activeTypes)
	}
}

func TestToDomainReservationRejectsMalformedDate(t *testing.T) {
	t.Parallel()

	model := testfixtures.NewReservationFixture().Persistence()
	model.Date = "2024/05/06"
	if _, err := adapters.ToDomainReservation(model); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestReservationConversionRoundTrip(t *testing.T) {
	t.Parallel()

	at := testfixtures.ReferenceTime()
	original := testfixtures.NewReservationFixture(
		testfixtures.WithReservationTimes("22:30", "24:00"),
		testfixtures.WithReservationHistory(scheduler.ChangeEntry{Timestamp: at, Field: "notes", OldValue: "", NewValue: "x", Actor: "u"}),
	).Domain()

	back, err := adapters.ToDomainReservation(adapters.ToPersistenceReservation(original))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if back.End.String() != "24:00" || back.Date != original.Date || len(back.ChangeHistory) != 1 {
		t.Fatalf("round trip lost data: %+v", back)
	}
}
