package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-scheduler/internal/persistence"
)

// ReservationRepository implements persistence.ReservationStore using SQLite
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reservationColumns = `
	r.id, r.room_id, r.requester_id, r.requester_name, r.reservation_date,
	r.start_minute, r.end_minute, r.meeting_type_id, r.participant_count, r.notes,
	r.canceled, r.canceled_at, r.cancel_reason, r.created_at, r.updated_at`

// ListReservations returns reservations matching the filter with their history.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, r.helper, r.mapper, filter)
}

// GetReservation retrieves a reservation and its history by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, r.helper, r.mapper, id)
}

// WithinTransaction runs fn inside one BEGIN IMMEDIATE transaction.
func (r *ReservationRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.ReservationTx) error) error {
	if fn == nil {
		return fmt.Errorf("sqlite: transaction func is nil")
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &reservationTx{helper: newTxHelper(tx), mapper: r.mapper})
	})
}

type reservationTx struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

func (t *reservationTx) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, t.helper, t.mapper, filter)
}

func (t *reservationTx) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, t.helper, t.mapper, id)
}

// LockRoomDay has nothing to add: BEGIN IMMEDIATE already holds the database
// write lock for the whole transaction.
func (t *reservationTx) LockRoomDay(ctx context.Context, _, _ string) error {
	return ctx.Err()
}

func (t *reservationTx) InsertReservations(ctx context.Context, reservations []persistence.Reservation) error {
	query := `
		INSERT INTO reservations (
			id, room_id, requester_id, requester_name, reservation_date,
			start_minute, end_minute, meeting_type_id, participant_count, notes,
			canceled, canceled_at, cancel_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, res := range reservations {
		if err := res.Validate(); err != nil {
			return err
		}
		_, err := t.helper.Exec(ctx, query,
			res.ID,
			res.RoomID,
			res.RequesterID,
			res.RequesterName,
			res.Date,
			res.StartMinute,
			res.EndMinute,
			nullableString(res.MeetingTypeID),
			res.ParticipantCount,
			res.Notes,
			boolToInt(res.Canceled),
			nullableTime(res.CanceledAt),
			res.CancelReason,
			formatTime(res.CreatedAt),
			formatTime(res.UpdatedAt),
		)
		if err != nil {
			return t.mapper.MapError(err)
		}
		if err := t.insertChanges(ctx, res.ID, 0, res.History); err != nil {
			return err
		}
	}
	return nil
}

func (t *reservationTx) UpdateReservation(ctx context.Context, id string, update persistence.ReservationUpdate) (persistence.Reservation, error) {
	current, err := getReservation(ctx, t.helper, t.mapper, id)
	if err != nil {
		return persistence.Reservation{}, err
	}
	updated := update.Apply(current)
	if err := updated.Validate(); err != nil {
		return persistence.Reservation{}, err
	}

	query := `
		UPDATE reservations
		SET room_id = ?, reservation_date = ?, start_minute = ?, end_minute = ?,
			meeting_type_id = ?, participant_count = ?, notes = ?,
			canceled = ?, canceled_at = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := t.helper.Exec(ctx, query,
		updated.RoomID,
		updated.Date,
		updated.StartMinute,
		updated.EndMinute,
		nullableString(updated.MeetingTypeID),
		updated.ParticipantCount,
		updated.Notes,
		boolToInt(updated.Canceled),
		nullableTime(updated.CanceledAt),
		updated.CancelReason,
		formatTime(updated.UpdatedAt),
		id,
	)
	if err != nil {
		return persistence.Reservation{}, t.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	if err := t.insertChanges(ctx, id, len(current.History), update.AppendHistory); err != nil {
		return persistence.Reservation{}, err
	}
	return updated, nil
}

// insertChanges appends history rows numbered after the existing ones.
func (t *reservationTx) insertChanges(ctx context.Context, reservationID string, existing int, entries []persistence.ChangeEntry) error {
	query := `
		INSERT INTO reservation_changes (reservation_id, seq, changed_at, field, old_value, new_value, actor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, entry := range entries {
		_, err := t.helper.Exec(ctx, query,
			reservationID,
			existing+i+1,
			formatTime(entry.ChangedAt),
			entry.Field,
			entry.OldValue,
			entry.NewValue,
			entry.Actor,
		)
		if err != nil {
			return t.mapper.MapError(err)
		}
	}
	return nil
}

func reservationWhere(filter persistence.ReservationFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "r.room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.Date != "" {
		clauses = append(clauses, "r.reservation_date = ?")
		args = append(args, filter.Date)
	}
	if !filter.IncludeCanceled {
		clauses = append(clauses, "r.canceled = 0")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func listReservations(ctx context.Context, helper *QueryHelper, mapper *ErrorMapper, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	where, args := reservationWhere(filter)
	query := "SELECT " + reservationColumns + " FROM reservations r" + where +
		" ORDER BY r.reservation_date, r.start_minute, r.id"

	rows, err := helper.Query(ctx, query, args...)
	if err != nil {
		return nil, mapper.MapError(err)
	}
	reservations := make([]persistence.Reservation, 0)
	index := make(map[string]int)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[res.ID] = len(reservations)
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}
	rows.Close()

	if len(reservations) == 0 {
		return reservations, nil
	}

	historyQuery := `
		SELECT c.reservation_id, c.changed_at, c.field, c.old_value, c.new_value, c.actor
		FROM reservation_changes c
		JOIN reservations r ON r.id = c.reservation_id` + where + `
		ORDER BY c.reservation_id, c.seq`
	changes, err := helper.Query(ctx, historyQuery, args...)
	if err != nil {
		return nil, mapper.MapError(err)
	}
	defer changes.Close()
	for changes.Next() {
		id, entry, err := scanChange(changes)
		if err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			reservations[i].History = append(reservations[i].History, entry)
		}
	}
	if err := changes.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation changes: %w", err)
	}
	return reservations, nil
}

func getReservation(ctx context.Context, helper *QueryHelper, mapper *ErrorMapper, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	query := "SELECT " + reservationColumns + " FROM reservations r WHERE r.id = ?"
	res, err := scanReservation(helper.QueryRow(ctx, query, id))
	if err != nil {
		return persistence.Reservation{}, mapper.MapError(err)
	}

	rows, err := helper.Query(ctx, `
		SELECT reservation_id, changed_at, field, old_value, new_value, actor
		FROM reservation_changes
		WHERE reservation_id = ?
		ORDER BY seq`, id)
	if err != nil {
		return persistence.Reservation{}, mapper.MapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		_, entry, err := scanChange(rows)
		if err != nil {
			return persistence.Reservation{}, err
		}
		res.History = append(res.History, entry)
	}
	if err := rows.Err(); err != nil {
		return persistence.Reservation{}, fmt.Errorf("error iterating reservation changes: %w", err)
	}
	return res, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		res                  persistence.Reservation
		meetingTypeID        sql.NullString
		canceled             int
		canceledAt           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&res.ID,
		&res.RoomID,
		&res.RequesterID,
		&res.RequesterName,
		&res.Date,
		&res.StartMinute,
		&res.EndMinute,
		&meetingTypeID,
		&res.ParticipantCount,
		&res.Notes,
		&canceled,
		&canceledAt,
		&res.CancelReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	if meetingTypeID.Valid {
		v := meetingTypeID.String
		res.MeetingTypeID = &v
	}
	res.Canceled = canceled == 1
	if canceledAt.Valid {
		at, err := parseTime(canceledAt.String)
		if err != nil {
			return persistence.Reservation{}, err
		}
		res.CanceledAt = &at
	}
	if res.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Reservation{}, err
	}
	if res.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Reservation{}, err
	}
	return res, nil
}

func scanChange(row rowScanner) (string, persistence.ChangeEntry, error) {
	var (
		reservationID string
		changedAt     string
		entry         persistence.ChangeEntry
	)
	if err := row.Scan(&reservationID, &changedAt, &entry.Field, &entry.OldValue, &entry.NewValue, &entry.Actor); err != nil {
		return "", persistence.ChangeEntry{}, fmt.Errorf("failed to scan reservation change: %w", err)
	}
	at, err := parseTime(changedAt)
	if err != nil {
		return "", persistence.ChangeEntry{}, err
	}
	entry.ChangedAt = at
	return reservationID, entry, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}
