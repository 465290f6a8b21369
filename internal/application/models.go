package application

import (
	"time"

	"github.com/example/room-scheduler/internal/scheduler"
)

// Principal represents the identity invoking a service method.
type Principal struct {
	UserID      string
	DisplayName string
	IsAdmin     bool
}

// name returns the display name used for requesterName, falling back to the id.
func (p Principal) name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserID
}

// RecurrenceInput selects how a new reservation repeats.
type RecurrenceInput struct {
	// Kind is one of none, weekly, biweekly or monthly. Empty means none.
	Kind string
	// Count is the number of occurrences including the anchor date.
	Count int
}

// ReservationInput captures caller provided reservation fields. Dates use
// YYYY-MM-DD and times use HH:MM.
type ReservationInput struct {
	RoomID           string
	Date             string
	StartTime        string
	EndTime          string
	MeetingTypeID    *string
	ParticipantCount int
	Notes            string
	Recurrence       RecurrenceInput
}

// ReservationPatch holds the fields an update changes. Nil fields are left
// unchanged; an empty MeetingTypeID clears the meeting type.
type ReservationPatch struct {
	RoomID           *string
	Date             *string
	StartTime        *string
	EndTime          *string
	MeetingTypeID    *string
	ParticipantCount *int
	Notes            *string
}

// CreateReservationParams wraps the data required to create a reservation or series.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// UpdateReservationParams wraps the data required to edit a reservation.
type UpdateReservationParams struct {
	Principal     Principal
	ReservationID string
	Patch         ReservationPatch
}

// CancelReservationParams wraps the data required to cancel a reservation.
type CancelReservationParams struct {
	Principal     Principal
	ReservationID string
	Reason        string
}

// ListReservationsParams narrows a reservation listing. Empty values match everything.
type ListReservationsParams struct {
	RoomID          string
	Date            string
	IncludeCanceled bool
}

// ConflictQuery describes a candidate interval to test against existing reservations.
type ConflictQuery struct {
	RoomID    string
	Date      string
	StartTime string
	EndTime   string
	ExcludeID string
}

// SlotQuery identifies a room and date for the planning helpers. Start and
// ExcludeID are only consulted by the end time helpers.
type SlotQuery struct {
	RoomID    string
	Date      string
	Start     string
	ExcludeID string
}

// ReservationFilter narrows store queries. A zero Date matches every date.
type ReservationFilter struct {
	RoomID          string
	Date            scheduler.Date
	IncludeCanceled bool
}

// ReservationFields is the merged state written by an update or cancel along
// with the history entries to append.
type ReservationFields struct {
	RoomID           string
	Date             scheduler.Date
	Start            scheduler.TimeOfDay
	End              scheduler.TimeOfDay
	MeetingTypeID    *string
	ParticipantCount int
	Notes            string
	Canceled         bool
	CanceledAt       *time.Time
	CancelReason     string
	AppendHistory    []scheduler.ChangeEntry
	UpdatedAt        time.Time
}

func fieldsFrom(r scheduler.Reservation) ReservationFields {
	return ReservationFields{
		RoomID:           r.RoomID,
		Date:             r.Date,
		Start:            r.Start,
		End:              r.End,
		MeetingTypeID:    r.MeetingTypeID,
		ParticipantCount: r.ParticipantCount,
		Notes:            r.Notes,
		Canceled:         r.Canceled,
		CanceledAt:       r.CanceledAt,
		CancelReason:     r.CancelReason,
		UpdatedAt:        r.UpdatedAt,
	}
}

// Event types published after a reservation change commits.
const (
	EventReservationCreated  = "reservation.created"
	EventReservationUpdated  = "reservation.updated"
	EventReservationCanceled = "reservation.canceled"
)

// ReservationEvent describes a committed reservation change.
type ReservationEvent struct {
	Type        string
	Reservation scheduler.Reservation
	Changes     []scheduler.ChangeEntry
	ActorID     string
	OccurredAt  time.Time
}
