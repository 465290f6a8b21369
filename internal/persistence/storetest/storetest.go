// Package storetest checks the behaviour every persistence.Storage backend
// has to share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/persistence"
)

// Factory returns a migrated, empty storage. Cleanup is the factory's job.
type Factory func(t *testing.T) persistence.Storage

var base = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

// Reservation builds a valid reservation for room R1 on 2024-05-06.
func Reservation(id string, startMinute, endMinute int) persistence.Reservation {
	return persistence.Reservation{
		ID:               id,
		RoomID:           "R1",
		RequesterID:      "u-alice",
		RequesterName:    "Alice",
		Date:             "2024-05-06",
		StartMinute:      startMinute,
		EndMinute:        endMinute,
		ParticipantCount: 3,
		CreatedAt:        base,
		UpdatedAt:        base,
	}
}

// Run executes the shared behaviour checks against storages built by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	t.Run("catalog upsert and listing", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		rooms := []persistence.Room{
			{ID: "R2", Name: "Midori", Capacity: 4, Active: true, CreatedAt: base, UpdatedAt: base},
			{ID: "R1", Name: "Aoi", Capacity: 8, Active: true, CreatedAt: base, UpdatedAt: base},
			{ID: "R9", Name: "Closed", Capacity: 2, Active: false, CreatedAt: base, UpdatedAt: base},
		}
		for _, room := range rooms {
			if err := store.UpsertRoom(ctx, room); err != nil {
				t.Fatalf("UpsertRoom(%s) failed: %v", room.ID, err)
			}
		}
		if err := store.UpsertRoom(ctx, persistence.Room{ID: "R0", Name: "Bad", Capacity: 0}); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected constraint violation for zero capacity, got %v", err)
		}

		active, err := store.ListRooms(ctx, true)
		if err != nil {
			t.Fatalf("ListRooms failed: %v", err)
		}
		if len(active) != 2 || active[0].ID != "R1" || active[1].ID != "R2" {
			t.Fatalf("expected active rooms ordered by name, got %+v", active)
		}
		all, err := store.ListRooms(ctx, false)
		if err != nil {
			t.Fatalf("ListRooms(all) failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 rooms, got %d", len(all))
		}

		renamed := rooms[0]
		renamed.Name = "Midori Large"
		renamed.Capacity = 6
		if err := store.UpsertRoom(ctx, renamed); err != nil {
			t.Fatalf("UpsertRoom(update) failed: %v", err)
		}
		room, err := store.GetRoom(ctx, "R2")
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if room.Name != "Midori Large" || room.Capacity != 6 || !room.Active {
			t.Fatalf("unexpected room after upsert: %+v", room)
		}
		if _, err := store.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		types := []persistence.MeetingType{
			{ID: "review", Name: "Review", Active: true, SortOrder: 2, CreatedAt: base, UpdatedAt: base},
			{ID: "standup", Name: "Standup", Active: true, SortOrder: 1, CreatedAt: base, UpdatedAt: base},
			{ID: "legacy", Name: "Legacy", Active: false, SortOrder: 0, CreatedAt: base, UpdatedAt: base},
		}
		for _, mt := range types {
			if err := store.UpsertMeetingType(ctx, mt); err != nil {
				t.Fatalf("UpsertMeetingType(%s) failed: %v", mt.ID, err)
			}
		}
		listed, err := store.ListMeetingTypes(ctx, true)
		if err != nil {
			t.Fatalf("ListMeetingTypes failed: %v", err)
		}
		if len(listed) != 2 || listed[0].ID != "standup" || listed[1].ID != "review" {
			t.Fatalf("expected active meeting types by sort order, got %+v", listed)
		}
	})

	t.Run("insert batch and read back", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		meetingType := "standup"
		canceledAt := base.Add(time.Hour)
		first := Reservation("res-1", 600, 660)
		first.MeetingTypeID = &meetingType
		first.Notes = "週次定例"
		first.History = []persistence.ChangeEntry{{ChangedAt: base, Field: "notes", OldValue: "", NewValue: "週次定例", Actor: "u-alice"}}
		second := Reservation("res-2", 540, 600)
		second.Canceled = true
		second.CanceledAt = &canceledAt
		second.CancelReason = "moved"
		third := Reservation("res-3", 540, 600)
		third.Date = "2024-05-13"

		err := store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
			return tx.InsertReservations(ctx, []persistence.Reservation{first, second, third})
		})
		if err != nil {
			t.Fatalf("InsertReservations failed: %v", err)
		}

		got, err := store.GetReservation(ctx, "res-1")
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if got.MeetingTypeID == nil || *got.MeetingTypeID != "standup" || got.Notes != "週次定例" {
			t.Fatalf("unexpected reservation: %+v", got)
		}
		if len(got.History) != 1 || got.History[0].Field != "notes" || !got.History[0].ChangedAt.Equal(base) {
			t.Fatalf("unexpected history: %+v", got.History)
		}
		if !got.CreatedAt.Equal(base) || !got.UpdatedAt.Equal(base) {
			t.Fatalf("timestamps not preserved: %v %v", got.CreatedAt, got.UpdatedAt)
		}

		canceled, err := store.GetReservation(ctx, "res-2")
		if err != nil {
			t.Fatalf("GetReservation(canceled) failed: %v", err)
		}
		if !canceled.Canceled || canceled.CanceledAt == nil || !canceled.CanceledAt.Equal(canceledAt) || canceled.CancelReason != "moved" {
			t.Fatalf("unexpected canceled reservation: %+v", canceled)
		}

		if _, err := store.GetReservation(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		tests := []struct {
			name   string
			filter persistence.ReservationFilter
			want   []string
		}{
			{name: "active only", filter: persistence.ReservationFilter{}, want: []string{"res-1", "res-3"}},
			{name: "with canceled", filter: persistence.ReservationFilter{IncludeCanceled: true}, want: []string{"res-2", "res-1", "res-3"}},
			{name: "by date", filter: persistence.ReservationFilter{RoomID: "R1", Date: "2024-05-13"}, want: []string{"res-3"}},
			{name: "other room", filter: persistence.ReservationFilter{RoomID: "R2"}, want: nil},
		}
		for _, tt := range tests {
			listed, err := store.ListReservations(ctx, tt.filter)
			if err != nil {
				t.Fatalf("%s: ListReservations failed: %v", tt.name, err)
			}
			if ids := idsOf(listed); fmt.Sprint(ids) != fmt.Sprint(tt.want) {
				t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, ids)
			}
		}

		listed, err := store.ListReservations(ctx, persistence.ReservationFilter{Date: "2024-05-06"})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(listed) != 1 || len(listed[0].History) != 1 {
			t.Fatalf("expected listing to carry history, got %+v", listed)
		}
	})

	t.Run("failed transaction writes nothing", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		boom := errors.New("boom")
		err := store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
			if err := tx.InsertReservations(ctx, []persistence.Reservation{Reservation("res-1", 600, 660)}); err != nil {
				return err
			}
			staged, err := tx.ListReservations(ctx, persistence.ReservationFilter{RoomID: "R1"})
			if err != nil {
				return err
			}
			if len(staged) != 1 {
				return fmt.Errorf("expected staged insert to be visible, got %d", len(staged))
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		listed, err := store.ListReservations(ctx, persistence.ReservationFilter{IncludeCanceled: true})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(listed) != 0 {
			t.Fatalf("expected rollback to discard writes, got %+v", listed)
		}
	})

	t.Run("constraint and duplicate errors", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		insert := func(r persistence.Reservation) error {
			return store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
				return tx.InsertReservations(ctx, []persistence.Reservation{r})
			})
		}
		if err := insert(Reservation("res-1", 600, 660)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := insert(Reservation("res-1", 700, 760)); !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if err := insert(Reservation("res-2", 660, 600)); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}

		err := store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
			_, err := tx.UpdateReservation(ctx, "missing", persistence.ReservationUpdate{})
			return err
		})
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("update rewrites fields and appends history", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		original := Reservation("res-1", 600, 660)
		original.History = []persistence.ChangeEntry{{ChangedAt: base, Field: "notes", OldValue: "", NewValue: "a", Actor: "u-alice"}}
		err := store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
			return tx.InsertReservations(ctx, []persistence.Reservation{original})
		})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		later := base.Add(2 * time.Hour)
		var updated persistence.Reservation
		err = store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
			if err := tx.LockRoomDay(ctx, "R1", "2024-05-06"); err != nil {
				return err
			}
			var err error
			updated, err = tx.UpdateReservation(ctx, "res-1", persistence.ReservationUpdate{
				RoomID:           "R1",
				Date:             "2024-05-06",
				StartMinute:      630,
				EndMinute:        690,
				ParticipantCount: 5,
				Notes:            "a",
				UpdatedAt:        later,
				AppendHistory: []persistence.ChangeEntry{
					{ChangedAt: later, Field: "startTime", OldValue: "10:00", NewValue: "10:30", Actor: "u-bob"},
					{ChangedAt: later, Field: "endTime", OldValue: "11:00", NewValue: "11:30", Actor: "u-bob"},
				},
			})
			return err
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if updated.StartMinute != 630 || len(updated.History) != 3 {
			t.Fatalf("unexpected update result: %+v", updated)
		}

		got, err := store.GetReservation(ctx, "res-1")
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if got.StartMinute != 630 || got.EndMinute != 690 || got.ParticipantCount != 5 || !got.UpdatedAt.Equal(later) {
			t.Fatalf("unexpected stored reservation: %+v", got)
		}
		fields := make([]string, 0, len(got.History))
		for _, entry := range got.History {
			fields = append(fields, entry.Field)
		}
		if fmt.Sprint(fields) != "[notes startTime endTime]" {
			t.Fatalf("expected history in append order, got %v", fields)
		}
		if !got.CreatedAt.Equal(base) || got.RequesterID != "u-alice" {
			t.Fatalf("immutable fields changed: %+v", got)
		}
	})

	t.Run("concurrent transactions are serialized", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		// every worker checks for an overlapping booking before inserting its own
		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			errs    []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
					if err := tx.LockRoomDay(ctx, "R1", "2024-05-06"); err != nil {
						return err
					}
					existing, err := tx.ListReservations(ctx, persistence.ReservationFilter{RoomID: "R1", Date: "2024-05-06"})
					if err != nil {
						return err
					}
					if len(existing) > 0 {
						return nil
					}
					if err := tx.InsertReservations(ctx, []persistence.Reservation{Reservation(fmt.Sprintf("res-%d", i), 600, 660)}); err != nil {
						return err
					}
					mu.Lock()
					created++
					mu.Unlock()
					return nil
				})
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if len(errs) > 0 {
			t.Fatalf("unexpected transaction errors: %v", errs)
		}
		listed, err := store.ListReservations(ctx, persistence.ReservationFilter{RoomID: "R1"})
		if err != nil {
			t.Fatalf("ListReservations failed: %v", err)
		}
		if len(listed) != 1 || created != 1 {
			t.Fatalf("expected exactly one booking, got %d stored and %d created", len(listed), created)
		}
	})
}

func idsOf(reservations []persistence.Reservation) []string {
	var ids []string
	for _, r := range reservations {
		ids = append(ids, r.ID)
	}
	return ids
}
