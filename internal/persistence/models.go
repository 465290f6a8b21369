package persistence

import (
	"sort"
	"time"
)

// Room represents a meeting room catalog entry.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MeetingType represents a meeting purpose catalog entry.
type MeetingType struct {
	ID        string
	Name      string
	Active    bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reservation is the stored form of a room booking. Date is YYYY-MM-DD and
// times are minutes since midnight.
type Reservation struct {
	ID               string
	RoomID           string
	RequesterID      string
	RequesterName    string
	Date             string
	StartMinute      int
	EndMinute        int
	MeetingTypeID    *string
	ParticipantCount int
	Notes            string
	Canceled         bool
	CanceledAt       *time.Time
	CancelReason     string
	History          []ChangeEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChangeEntry is one row of a reservation's append-only history.
type ChangeEntry struct {
	ChangedAt time.Time
	Field     string
	OldValue  string
	NewValue  string
	Actor     string
}

// ReservationFilter narrows reservation queries. Empty values match everything.
type ReservationFilter struct {
	RoomID          string
	Date            string
	IncludeCanceled bool
}

// ReservationUpdate carries the full mutable state of a reservation and the
// history rows to append.
type ReservationUpdate struct {
	RoomID           string
	Date             string
	StartMinute      int
	EndMinute        int
	MeetingTypeID    *string
	ParticipantCount int
	Notes            string
	Canceled         bool
	CanceledAt       *time.Time
	CancelReason     string
	AppendHistory    []ChangeEntry
	UpdatedAt        time.Time
}

// Apply returns r with the update applied. History is copied, never aliased.
func (u ReservationUpdate) Apply(r Reservation) Reservation {
	out := CloneReservation(r)
	out.RoomID = u.RoomID
	out.Date = u.Date
	out.StartMinute = u.StartMinute
	out.EndMinute = u.EndMinute
	out.MeetingTypeID = cloneStringPtr(u.MeetingTypeID)
	out.ParticipantCount = u.ParticipantCount
	out.Notes = u.Notes
	out.Canceled = u.Canceled
	out.CanceledAt = cloneTimePtr(u.CanceledAt)
	out.CancelReason = u.CancelReason
	out.History = append(out.History, u.AppendHistory...)
	out.UpdatedAt = u.UpdatedAt
	return out
}

// Validate checks the constraints every store enforces before writing.
func (r Reservation) Validate() error {
	switch {
	case r.ID == "", r.RoomID == "", r.RequesterID == "", r.Date == "":
		return ErrConstraintViolation
	case r.StartMinute < 0, r.EndMinute > 24*60, r.StartMinute >= r.EndMinute:
		return ErrConstraintViolation
	case r.ParticipantCount < 1:
		return ErrConstraintViolation
	}
	return nil
}

// CloneReservation returns a deep copy of r.
func CloneReservation(r Reservation) Reservation {
	out := r
	out.MeetingTypeID = cloneStringPtr(r.MeetingTypeID)
	out.CanceledAt = cloneTimePtr(r.CanceledAt)
	if r.History != nil {
		out.History = make([]ChangeEntry, len(r.History))
		copy(out.History, r.History)
	}
	return out
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// Matches reports whether r satisfies the filter.
func (f ReservationFilter) Matches(r Reservation) bool {
	if f.RoomID != "" && r.RoomID != f.RoomID {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	return f.IncludeCanceled || !r.Canceled
}

// SortReservations orders reservations by date, start minute and ID, the order
// every store returns from ListReservations.
func SortReservations(reservations []Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartMinute != b.StartMinute {
			return a.StartMinute < b.StartMinute
		}
		return a.ID < b.ID
	})
}
