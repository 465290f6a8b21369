package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-scheduler/internal/persistence"
)

// CatalogRepository implements persistence.CatalogRepository using SQLite
type CatalogRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewCatalogRepository creates a new SQLite catalog repository
func NewCatalogRepository(pool *ConnectionPool) *CatalogRepository {
	return &CatalogRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// UpsertRoom inserts a room or replaces the mutable columns of an existing one.
func (r *CatalogRepository) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	now := r.now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = now
	}

	query := `
		INSERT INTO rooms (id, name, capacity, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			capacity = excluded.capacity,
			active = excluded.active,
			updated_at = excluded.updated_at
	`
	_, err := r.helper.Exec(ctx, query,
		room.ID,
		room.Name,
		room.Capacity,
		boolToInt(room.Active),
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetRoom retrieves a room by ID regardless of its active flag.
func (r *CatalogRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	query := `
		SELECT id, name, capacity, active, created_at, updated_at
		FROM rooms
		WHERE id = ?
	`
	room, err := scanRoom(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns rooms ordered by name and then ID.
func (r *CatalogRepository) ListRooms(ctx context.Context, activeOnly bool) ([]persistence.Room, error) {
	query := `
		SELECT id, name, capacity, active, created_at, updated_at
		FROM rooms
	`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY name, id"

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}
	return rooms, nil
}

// UpsertMeetingType inserts a meeting type or replaces an existing one.
func (r *CatalogRepository) UpsertMeetingType(ctx context.Context, meetingType persistence.MeetingType) error {
	if meetingType.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := r.now().UTC()
	if meetingType.CreatedAt.IsZero() {
		meetingType.CreatedAt = now
	}
	if meetingType.UpdatedAt.IsZero() {
		meetingType.UpdatedAt = now
	}

	query := `
		INSERT INTO meeting_types (id, name, active, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at
	`
	_, err := r.helper.Exec(ctx, query,
		meetingType.ID,
		meetingType.Name,
		boolToInt(meetingType.Active),
		meetingType.SortOrder,
		formatTime(meetingType.CreatedAt),
		formatTime(meetingType.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// ListMeetingTypes returns meeting types ordered by sort order and then ID.
func (r *CatalogRepository) ListMeetingTypes(ctx context.Context, activeOnly bool) ([]persistence.MeetingType, error) {
	query := `
		SELECT id, name, active, sort_order, created_at, updated_at
		FROM meeting_types
	`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY sort_order, id"

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	types := make([]persistence.MeetingType, 0)
	for rows.Next() {
		var (
			mt                   persistence.MeetingType
			active               int
			createdAt, updatedAt string
		)
		if err := rows.Scan(&mt.ID, &mt.Name, &active, &mt.SortOrder, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting type: %w", err)
		}
		mt.Active = active == 1
		if mt.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if mt.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		types = append(types, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meeting types: %w", err)
	}
	return types, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                 persistence.Room
		active               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&room.ID, &room.Name, &room.Capacity, &active, &createdAt, &updatedAt); err != nil {
		return persistence.Room{}, err
	}
	room.Active = active == 1
	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}
