package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-scheduler/internal/persistence"
)

const selectReservations = `
	SELECT id, room_id, requester_id, requester_name, reservation_date,
		start_minute, end_minute, meeting_type_id, participant_count, notes,
		canceled, canceled_at, cancel_reason, created_at, updated_at
	FROM reservations`

// ListReservations returns reservations matching the filter with their history.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, s.pool, filter)
}

// GetReservation retrieves a reservation and its history by ID.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, s.pool, id)
}

// WithinTransaction runs fn in a read committed transaction. Conflict checks
// stay correct because every writer takes LockRoomDay first.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.ReservationTx) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction func is nil")
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", mapError(err))
	}
	return nil
}

type reservationTx struct {
	tx pgx.Tx
}

func (t *reservationTx) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	return listReservations(ctx, t.tx, filter)
}

func (t *reservationTx) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	return getReservation(ctx, t.tx, id)
}

// LockRoomDay takes a transaction scoped advisory lock on the room and date.
func (t *reservationTx) LockRoomDay(ctx context.Context, roomID, date string) error {
	key := "room:" + roomID + ":" + date
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("locking %s: %w", key, err)
	}
	return nil
}

func (t *reservationTx) InsertReservations(ctx context.Context, reservations []persistence.Reservation) error {
	for _, res := range reservations {
		if err := res.Validate(); err != nil {
			return err
		}
		date, err := parseDate(res.Date)
		if err != nil {
			return err
		}
		_, err = t.tx.Exec(ctx, `
			INSERT INTO reservations (
				id, room_id, requester_id, requester_name, reservation_date,
				start_minute, end_minute, meeting_type_id, participant_count, notes,
				canceled, canceled_at, cancel_reason, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			res.ID, res.RoomID, res.RequesterID, res.RequesterName, date,
			res.StartMinute, res.EndMinute, res.MeetingTypeID, res.ParticipantCount, res.Notes,
			res.Canceled, res.CanceledAt, res.CancelReason, res.CreatedAt, res.UpdatedAt,
		)
		if err != nil {
			return mapError(err)
		}
		if err := insertChanges(ctx, t.tx, res.ID, 0, res.History); err != nil {
			return err
		}
	}
	return nil
}

func (t *reservationTx) UpdateReservation(ctx context.Context, id string, update persistence.ReservationUpdate) (persistence.Reservation, error) {
	current, err := getReservation(ctx, t.tx, id)
	if err != nil {
		return persistence.Reservation{}, err
	}
	updated := update.Apply(current)
	if err := updated.Validate(); err != nil {
		return persistence.Reservation{}, err
	}
	date, err := parseDate(updated.Date)
	if err != nil {
		return persistence.Reservation{}, err
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE reservations
		SET room_id = $1, reservation_date = $2, start_minute = $3, end_minute = $4,
			meeting_type_id = $5, participant_count = $6, notes = $7,
			canceled = $8, canceled_at = $9, cancel_reason = $10, updated_at = $11
		WHERE id = $12`,
		updated.RoomID, date, updated.StartMinute, updated.EndMinute,
		updated.MeetingTypeID, updated.ParticipantCount, updated.Notes,
		updated.Canceled, updated.CanceledAt, updated.CancelReason, updated.UpdatedAt,
		id,
	)
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	if err := insertChanges(ctx, t.tx, id, len(current.History), update.AppendHistory); err != nil {
		return persistence.Reservation{}, err
	}
	return updated, nil
}

func insertChanges(ctx context.Context, db dbtx, reservationID string, existing int, entries []persistence.ChangeEntry) error {
	for i, entry := range entries {
		_, err := db.Exec(ctx, `
			INSERT INTO reservation_changes (reservation_id, seq, changed_at, field, old_value, new_value, actor)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			reservationID, existing+i+1, entry.ChangedAt, entry.Field, entry.OldValue, entry.NewValue, entry.Actor,
		)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func listReservations(ctx context.Context, db dbtx, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var date *time.Time
	if filter.Date != "" {
		d, err := parseDate(filter.Date)
		if err != nil {
			return nil, err
		}
		date = &d
	}

	rows, err := db.Query(ctx, selectReservations+`
		WHERE ($1 = '' OR room_id = $1)
			AND ($2::date IS NULL OR reservation_date = $2::date)
			AND ($3 OR NOT canceled)
		ORDER BY reservation_date, start_minute, id`,
		filter.RoomID, date, filter.IncludeCanceled,
	)
	if err != nil {
		return nil, mapError(err)
	}
	reservations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.Reservation, error) {
		return scanReservation(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning reservations: %w", err)
	}
	if len(reservations) == 0 {
		return reservations, nil
	}
	if err := attachHistory(ctx, db, reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func getReservation(ctx context.Context, db dbtx, id string) (persistence.Reservation, error) {
	res, err := scanReservation(db.QueryRow(ctx, selectReservations+` WHERE id = $1`, id))
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	list := []persistence.Reservation{res}
	if err := attachHistory(ctx, db, list); err != nil {
		return persistence.Reservation{}, err
	}
	return list[0], nil
}

func attachHistory(ctx context.Context, db dbtx, reservations []persistence.Reservation) error {
	ids := make([]string, len(reservations))
	index := make(map[string]int, len(reservations))
	for i, r := range reservations {
		ids[i] = r.ID
		index[r.ID] = i
	}

	rows, err := db.Query(ctx, `
		SELECT reservation_id, changed_at, field, old_value, new_value, actor
		FROM reservation_changes
		WHERE reservation_id = ANY($1)
		ORDER BY reservation_id, seq`, ids)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			entry persistence.ChangeEntry
		)
		if err := rows.Scan(&id, &entry.ChangedAt, &entry.Field, &entry.OldValue, &entry.NewValue, &entry.Actor); err != nil {
			return fmt.Errorf("scanning reservation change: %w", err)
		}
		if i, ok := index[id]; ok {
			reservations[i].History = append(reservations[i].History, entry)
		}
	}
	return rows.Err()
}

func scanReservation(row pgx.Row) (persistence.Reservation, error) {
	var (
		res  persistence.Reservation
		date time.Time
	)
	err := row.Scan(
		&res.ID, &res.RoomID, &res.RequesterID, &res.RequesterName, &date,
		&res.StartMinute, &res.EndMinute, &res.MeetingTypeID, &res.ParticipantCount, &res.Notes,
		&res.Canceled, &res.CanceledAt, &res.CancelReason, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}
	res.Date = date.Format(dateLayout)
	return res, nil
}
