package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/room-scheduler/internal/adapters"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides a migrated temporary SQLite storage together with
// the application facing adapters over it.
type SQLiteHarness struct {
	Storage      *sqlite.Storage
	Store        *adapters.ReservationStore
	Rooms        *adapters.RoomCatalog
	MeetingTypes *adapters.MeetingTypeCatalog

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	storage, err := sqlite.Open(ctx, path, logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:      storage,
		Store:        adapters.NewReservationStore(storage),
		Rooms:        adapters.NewRoomCatalog(storage),
		MeetingTypes: adapters.NewMeetingTypeCatalog(storage),
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedRooms stores the given rooms.
func (h *SQLiteHarness) SeedRooms(tb testing.TB, rooms ...RoomFixture) {
	tb.Helper()
	for _, room := range rooms {
		if err := h.Storage.UpsertRoom(context.Background(), room.Persistence()); err != nil {
			tb.Fatalf("failed to seed room %s: %v", room.ID, err)
		}
	}
}

// SeedMeetingTypes stores the given meeting types.
func (h *SQLiteHarness) SeedMeetingTypes(tb testing.TB, types ...MeetingTypeFixture) {
	tb.Helper()
	for _, mt := range types {
		if err := h.Storage.UpsertMeetingType(context.Background(), mt.Persistence()); err != nil {
			tb.Fatalf("failed to seed meeting type %s: %v", mt.ID, err)
		}
	}
}

// SeedReservations inserts the given reservations in one transaction.
func (h *SQLiteHarness) SeedReservations(tb testing.TB, reservations ...ReservationFixture) {
	tb.Helper()
	models := make([]persistence.Reservation, 0, len(reservations))
	for _, r := range reservations {
		models = append(models, r.Persistence())
	}
	err := h.Storage.WithinTransaction(context.Background(), func(ctx context.Context, tx persistence.ReservationTx) error {
		return tx.InsertReservations(ctx, models)
	})
	if err != nil {
		tb.Fatalf("failed to seed reservations: %v", err)
	}
}
