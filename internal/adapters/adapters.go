// Package adapters connects the persistence stores to the interfaces the
// application layer depends on, converting between storage records and
// scheduler values.
package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/scheduler"
)

// ReservationStore adapts a persistence.ReservationStore to application.ReservationStore.
type ReservationStore struct {
	store persistence.ReservationStore
}

var (
	_ application.ReservationStore   = (*ReservationStore)(nil)
	_ application.RoomCatalog        = (*RoomCatalog)(nil)
	_ application.MeetingTypeCatalog = (*MeetingTypeCatalog)(nil)
)

func NewReservationStore(store persistence.ReservationStore) *ReservationStore {
	return &ReservationStore{store: store}
}

func (a *ReservationStore) ListReservations(ctx context.Context, filter application.ReservationFilter) ([]scheduler.Reservation, error) {
	return listReservations(ctx, a.store, filter)
}

func (a *ReservationStore) GetReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	return getReservation(ctx, a.store, id)
}

func (a *ReservationStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx application.ReservationTx) error) error {
	return a.store.WithinTransaction(ctx, func(ctx context.Context, tx persistence.ReservationTx) error {
		return fn(ctx, reservationTx{tx: tx})
	})
}

type reservationTx struct {
	tx persistence.ReservationTx
}

func (t reservationTx) ListReservations(ctx context.Context, filter application.ReservationFilter) ([]scheduler.Reservation, error) {
	return listReservations(ctx, t.tx, filter)
}

func (t reservationTx) GetReservation(ctx context.Context, id string) (scheduler.Reservation, error) {
	return getReservation(ctx, t.tx, id)
}

func (t reservationTx) InsertBatch(ctx context.Context, reservations []scheduler.Reservation) error {
	models := make([]persistence.Reservation, 0, len(reservations))
	for _, r := range reservations {
		models = append(models, ToPersistenceReservation(r))
	}
	return t.tx.InsertReservations(ctx, models)
}

func (t reservationTx) UpdateFields(ctx context.Context, id string, fields application.ReservationFields) (scheduler.Reservation, error) {
	model, err := t.tx.UpdateReservation(ctx, id, persistence.ReservationUpdate{
		RoomID:           fields.RoomID,
		Date:             fields.Date.String(),
		StartMinute:      int(fields.Start),
		EndMinute:        int(fields.End),
		MeetingTypeID:    cloneString(fields.MeetingTypeID),
		ParticipantCount: fields.ParticipantCount,
		Notes:            fields.Notes,
		Canceled:         fields.Canceled,
		CanceledAt:       fields.CanceledAt,
		CancelReason:     fields.CancelReason,
		AppendHistory:    toPersistenceChanges(fields.AppendHistory),
		UpdatedAt:        fields.UpdatedAt,
	})
	if err != nil {
		return scheduler.Reservation{}, err
	}
	return ToDomainReservation(model)
}

func (t reservationTx) LockRoomDay(ctx context.Context, roomID string, date scheduler.Date) error {
	return t.tx.LockRoomDay(ctx, roomID, date.String())
}

func listReservations(ctx context.Context, reader persistence.ReservationReader, filter application.ReservationFilter) ([]scheduler.Reservation, error) {
	pf := persistence.ReservationFilter{RoomID: filter.RoomID, IncludeCanceled: filter.IncludeCanceled}
	if !filter.Date.IsZero() {
		pf.Date = filter.Date.String()
	}
	models, err := reader.ListReservations(ctx, pf)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Reservation, 0, len(models))
	for _, m := range models {
		r, err := ToDomainReservation(m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func getReservation(ctx context.Context, reader persistence.ReservationReader, id string) (scheduler.Reservation, error) {
	model, err := reader.GetReservation(ctx, id)
	if err != nil {
		return scheduler.Reservation{}, err
	}
	return ToDomainReservation(model)
}

// RoomCatalog exposes active rooms from a persistence.CatalogRepository.
type RoomCatalog struct {
	repo persistence.CatalogRepository
}

func NewRoomCatalog(repo persistence.CatalogRepository) *RoomCatalog {
	return &RoomCatalog{repo: repo}
}

func (a *RoomCatalog) ListActiveRooms(ctx context.Context) ([]scheduler.Room, error) {
	models, err := a.repo.ListRooms(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Room, 0, len(models))
	for _, m := range models {
		out = append(out, toDomainRoom(m))
	}
	return out, nil
}

// GetRoom returns the room regardless of its active flag so callers can tell
// an inactive room from an unknown one.
func (a *RoomCatalog) GetRoom(ctx context.Context, id string) (scheduler.Room, error) {
	model, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return scheduler.Room{}, err
	}
	return toDomainRoom(model), nil
}

// MeetingTypeCatalog exposes active meeting types from a persistence.CatalogRepository.
type MeetingTypeCatalog struct {
	repo persistence.CatalogRepository
}

func NewMeetingTypeCatalog(repo persistence.CatalogRepository) *MeetingTypeCatalog {
	return &MeetingTypeCatalog{repo: repo}
}

func (a *MeetingTypeCatalog) ListActiveTypes(ctx context.Context) ([]scheduler.MeetingType, error) {
	models, err := a.repo.ListMeetingTypes(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.MeetingType, 0, len(models))
	for _, m := range models {
		out = append(out, scheduler.MeetingType{ID: m.ID, Name: m.Name, Active: m.Active})
	}
	return out, nil
}

// ToDomainReservation converts a stored record. Malformed dates are reported
// as persistence.ErrConstraintViolation.
func ToDomainReservation(model persistence.Reservation) (scheduler.Reservation, error) {
	date, err := scheduler.ParseDate(model.Date)
	if err != nil {
		return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s: %w", persistence.ErrConstraintViolation, model.ID, err)
	}
	r := scheduler.Reservation{
		ID:               model.ID,
		RoomID:           model.RoomID,
		RequesterID:      model.RequesterID,
		RequesterName:    model.RequesterName,
		Date:             date,
		Start:            scheduler.TimeOfDay(model.StartMinute),
		End:              scheduler.TimeOfDay(model.EndMinute),
		MeetingTypeID:    cloneString(model.MeetingTypeID),
		ParticipantCount: model.ParticipantCount,
		Notes:            model.Notes,
		Canceled:         model.Canceled,
		CanceledAt:       cloneTime(model.CanceledAt),
		CancelReason:     model.CancelReason,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if len(model.History) > 0 {
		r.ChangeHistory = make([]scheduler.ChangeEntry, 0, len(model.History))
		for _, h := range model.History {
			r.ChangeHistory = append(r.ChangeHistory, scheduler.ChangeEntry{
				Timestamp: h.ChangedAt,
				Field:     h.Field,
				OldValue:  h.OldValue,
				NewValue:  h.NewValue,
				Actor:     h.Actor,
			})
		}
	}
	return r, nil
}

// ToPersistenceReservation converts a reservation into its stored form.
func ToPersistenceReservation(r scheduler.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:               r.ID,
		RoomID:           r.RoomID,
		RequesterID:      r.RequesterID,
		RequesterName:    r.RequesterName,
		Date:             r.Date.String(),
		StartMinute:      int(r.Start),
		EndMinute:        int(r.End),
		MeetingTypeID:    cloneString(r.MeetingTypeID),
		ParticipantCount: r.ParticipantCount,
		Notes:            r.Notes,
		Canceled:         r.Canceled,
		CanceledAt:       cloneTime(r.CanceledAt),
		CancelReason:     r.CancelReason,
		History:          toPersistenceChanges(r.ChangeHistory),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toPersistenceChanges(entries []scheduler.ChangeEntry) []persistence.ChangeEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]persistence.ChangeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, persistence.ChangeEntry{
			ChangedAt: e.Timestamp,
			Field:     e.Field,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			Actor:     e.Actor,
		})
	}
	return out
}

func toDomainRoom(model persistence.Room) scheduler.Room {
	return scheduler.Room{ID: model.ID, Name: model.Name, Capacity: model.Capacity, Active: model.Active}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
