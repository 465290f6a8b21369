// Package memory provides an in-process persistence.Storage used for local
// runs and tests. Data lives only as long as the process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/room-scheduler/internal/persistence"
)

// Storage keeps rooms, meeting types and reservations in maps guarded by a
// single mutex. A transaction holds the write lock until it finishes, so
// writers are serialized and LockRoomDay has nothing left to do.
type Storage struct {
	mu           sync.RWMutex
	rooms        map[string]persistence.Room
	meetingTypes map[string]persistence.MeetingType
	reservations map[string]persistence.Reservation
}

var _ persistence.Storage = (*Storage)(nil)

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{
		rooms:        make(map[string]persistence.Room),
		meetingTypes: make(map[string]persistence.MeetingType),
		reservations: make(map[string]persistence.Reservation),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// --- CatalogRepository implementation ---

// UpsertRoom creates or replaces a room.
func (s *Storage) UpsertRoom(_ context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rooms[room.ID]; ok && room.CreatedAt.IsZero() {
		room.CreatedAt = existing.CreatedAt
	}
	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID regardless of its active flag.
func (s *Storage) GetRoom(_ context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns rooms ordered by name and then ID.
func (s *Storage) ListRooms(_ context.Context, activeOnly bool) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if activeOnly && !room.Active {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// UpsertMeetingType creates or replaces a meeting type.
func (s *Storage) UpsertMeetingType(_ context.Context, meetingType persistence.MeetingType) error {
	if meetingType.ID == "" {
		return persistence.ErrConstraintViolation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.meetingTypes[meetingType.ID]; ok && meetingType.CreatedAt.IsZero() {
		meetingType.CreatedAt = existing.CreatedAt
	}
	s.meetingTypes[meetingType.ID] = meetingType
	return nil
}

// ListMeetingTypes returns meeting types ordered by sort order and then ID.
func (s *Storage) ListMeetingTypes(_ context.Context, activeOnly bool) ([]persistence.MeetingType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]persistence.MeetingType, 0, len(s.meetingTypes))
	for _, mt := range s.meetingTypes {
		if activeOnly && !mt.Active {
			continue
		}
		types = append(types, mt)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].SortOrder == types[j].SortOrder {
			return types[i].ID < types[j].ID
		}
		return types[i].SortOrder < types[j].SortOrder
	})
	return types, nil
}

// --- ReservationStore implementation ---

// ListReservations returns reservations matching the filter.
func (s *Storage) ListReservations(_ context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listReservations(s.reservations, nil, filter), nil
}

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(_ context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getReservation(s.reservations, nil, id)
}

// WithinTransaction runs fn against a staged view of the reservations. Staged
// writes are applied only when fn returns nil.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.ReservationTx) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction func is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		base:   s.reservations,
		staged: make(map[string]persistence.Reservation),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, reservation := range tx.staged {
		s.reservations[id] = reservation
	}
	return nil
}

type transaction struct {
	base   map[string]persistence.Reservation
	staged map[string]persistence.Reservation
}

func (tx *transaction) ListReservations(_ context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(tx.base, tx.staged, filter), nil
}

func (tx *transaction) GetReservation(_ context.Context, id string) (persistence.Reservation, error) {
	return getReservation(tx.base, tx.staged, id)
}

func (tx *transaction) InsertReservations(_ context.Context, reservations []persistence.Reservation) error {
	for _, r := range reservations {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, ok := tx.staged[r.ID]; ok {
			return persistence.ErrDuplicate
		}
		if _, ok := tx.base[r.ID]; ok {
			return persistence.ErrDuplicate
		}
		tx.staged[r.ID] = persistence.CloneReservation(r)
	}
	return nil
}

func (tx *transaction) UpdateReservation(_ context.Context, id string, update persistence.ReservationUpdate) (persistence.Reservation, error) {
	current, err := getReservation(tx.base, tx.staged, id)
	if err != nil {
		return persistence.Reservation{}, err
	}
	updated := update.Apply(current)
	if err := updated.Validate(); err != nil {
		return persistence.Reservation{}, err
	}
	tx.staged[id] = updated
	return persistence.CloneReservation(updated), nil
}

func (tx *transaction) LockRoomDay(ctx context.Context, _, _ string) error {
	return ctx.Err()
}

func getReservation(base, staged map[string]persistence.Reservation, id string) (persistence.Reservation, error) {
	if r, ok := staged[id]; ok {
		return persistence.CloneReservation(r), nil
	}
	if r, ok := base[id]; ok {
		return persistence.CloneReservation(r), nil
	}
	return persistence.Reservation{}, persistence.ErrNotFound
}

func listReservations(base, staged map[string]persistence.Reservation, filter persistence.ReservationFilter) []persistence.Reservation {
	out := make([]persistence.Reservation, 0)
	for id, r := range base {
		if _, overridden := staged[id]; overridden {
			continue
		}
		if filter.Matches(r) {
			out = append(out, persistence.CloneReservation(r))
		}
	}
	for _, r := range staged {
		if filter.Matches(r) {
			out = append(out, persistence.CloneReservation(r))
		}
	}
	persistence.SortReservations(out)
	return out
}
