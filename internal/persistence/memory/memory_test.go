package memory_test

import (
	"context"
	"testing"

	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/persistence/memory"
	"github.com/example/room-scheduler/internal/persistence/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Storage {
		return memory.Open()
	})
}

func TestStorage_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.Open()
	res := storetest.Reservation("res-1", 600, 660)
	res.History = []persistence.ChangeEntry{{Field: "notes", NewValue: "a"}}
	err := store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
		return tx.InsertReservations(ctx, []persistence.Reservation{res})
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	res.History[0].Field = "mutated"
	got, err := store.GetReservation(ctx, "res-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	got.History[0].NewValue = "changed"

	again, err := store.GetReservation(ctx, "res-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if again.History[0].Field != "notes" || again.History[0].NewValue != "a" {
		t.Fatalf("stored history aliased caller slices: %+v", again.History)
	}
}

func TestStorage_CanceledContextDiscardsWrites(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	store := memory.Open()
	err := store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
		if err := tx.InsertReservations(ctx, []persistence.Reservation{storetest.Reservation("res-1", 600, 660)}); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if err == nil {
		t.Fatalf("expected canceled context to abort the transaction")
	}
	listed, err := store.ListReservations(context.Background(), persistence.ReservationFilter{IncludeCanceled: true})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no writes, got %+v", listed)
	}
}
