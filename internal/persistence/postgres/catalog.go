package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-scheduler/internal/persistence"
)

// UpsertRoom inserts a room or replaces the mutable columns of an existing one.
func (s *Storage) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	now := s.now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = now
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, capacity, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		room.ID, room.Name, room.Capacity, room.Active, room.CreatedAt, room.UpdatedAt,
	)
	return mapError(err)
}

// GetRoom retrieves a room by ID regardless of its active flag.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var room persistence.Room
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, capacity, active, created_at, updated_at
		FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.Name, &room.Capacity, &room.Active, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns rooms ordered by name and then ID.
func (s *Storage) ListRooms(ctx context.Context, activeOnly bool) ([]persistence.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, capacity, active, created_at, updated_at
		FROM rooms
		WHERE active OR NOT $1
		ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, mapError(err)
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.Room, error) {
		var room persistence.Room
		err := row.Scan(&room.ID, &room.Name, &room.Capacity, &room.Active, &room.CreatedAt, &room.UpdatedAt)
		return room, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rooms: %w", err)
	}
	return rooms, nil
}

// UpsertMeetingType inserts a meeting type or replaces an existing one.
func (s *Storage) UpsertMeetingType(ctx context.Context, meetingType persistence.MeetingType) error {
	if meetingType.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := s.now().UTC()
	if meetingType.CreatedAt.IsZero() {
		meetingType.CreatedAt = now
	}
	if meetingType.UpdatedAt.IsZero() {
		meetingType.UpdatedAt = now
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meeting_types (id, name, active, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			sort_order = EXCLUDED.sort_order,
			updated_at = EXCLUDED.updated_at`,
		meetingType.ID, meetingType.Name, meetingType.Active, meetingType.SortOrder, meetingType.CreatedAt, meetingType.UpdatedAt,
	)
	return mapError(err)
}

// ListMeetingTypes returns meeting types ordered by sort order and then ID.
func (s *Storage) ListMeetingTypes(ctx context.Context, activeOnly bool) ([]persistence.MeetingType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, active, sort_order, created_at, updated_at
		FROM meeting_types
		WHERE active OR NOT $1
		ORDER BY sort_order, id`, activeOnly)
	if err != nil {
		return nil, mapError(err)
	}
	types, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.MeetingType, error) {
		var mt persistence.MeetingType
		err := row.Scan(&mt.ID, &mt.Name, &mt.Active, &mt.SortOrder, &mt.CreatedAt, &mt.UpdatedAt)
		return mt, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning meeting types: %w", err)
	}
	return types, nil
}
