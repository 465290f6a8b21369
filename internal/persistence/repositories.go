package persistence

import "context"

// ReservationReader exposes reservation queries.
type ReservationReader interface {
	// ListReservations returns matches ordered by date, start minute and id.
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
}

// ReservationTx is the view of the store inside WithinTransaction.
type ReservationTx interface {
	ReservationReader
	InsertReservations(ctx context.Context, reservations []Reservation) error
	UpdateReservation(ctx context.Context, id string, update ReservationUpdate) (Reservation, error)
	// LockRoomDay blocks other writers of the same room and date until the
	// transaction finishes.
	LockRoomDay(ctx context.Context, roomID, date string) error
}

// ReservationStore stores reservations and their history. There is no delete.
type ReservationStore interface {
	ReservationReader
	// WithinTransaction runs fn atomically; an error from fn rolls back every write.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx ReservationTx) error) error
}

// CatalogRepository stores the room and meeting type reference data.
type CatalogRepository interface {
	ListRooms(ctx context.Context, activeOnly bool) ([]Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpsertRoom(ctx context.Context, room Room) error
	ListMeetingTypes(ctx context.Context, activeOnly bool) ([]MeetingType, error)
	UpsertMeetingType(ctx context.Context, meetingType MeetingType) error
}

// Storage is the full persistence surface implemented by each backend.
type Storage interface {
	ReservationStore
	CatalogRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
