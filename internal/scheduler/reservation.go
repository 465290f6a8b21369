package scheduler

import (
	"sort"
	"time"
)

// Room is a bookable physical meeting room.
type Room struct {
	ID       string
	Name     string
	Capacity int
	Active   bool
}

// MeetingType is reference data describing the purpose of a meeting.
type MeetingType struct {
	ID     string
	Name   string
	Active bool
}

// Interval is a half-open [Start, End) range of wall clock minutes.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Valid reports whether both bounds are in range and Start precedes End.
func (i Interval) Valid() bool {
	return i.Start.Valid() && i.End.Valid() && i.Start < i.End
}

// Overlaps reports whether the intervals share at least one minute. The single
// inequality covers candidates starting inside, ending inside, or containing other.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}

// Contains reports whether t falls within [Start, End).
func (i Interval) Contains(t TimeOfDay) bool {
	return t >= i.Start && t < i.End
}

// Pad widens the interval by d on both sides.
func (i Interval) Pad(d time.Duration) Interval {
	return Interval{Start: i.Start.Add(-d), End: i.End.Add(d)}
}

// ChangeEntry records a single field edit on a reservation.
type ChangeEntry struct {
	Timestamp time.Time
	Field     string
	OldValue  string
	NewValue  string
	Actor     string
}

// Reservation is a booking of one room for one date.
type Reservation struct {
	ID               string
	RoomID           string
	RequesterID      string
	RequesterName    string
	Date             Date
	Start            TimeOfDay
	End              TimeOfDay
	MeetingTypeID    *string
	ParticipantCount int
	Notes            string
	Canceled         bool
	CanceledAt       *time.Time
	CancelReason     string
	ChangeHistory    []ChangeEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Interval returns the booked [Start, End) range.
func (r Reservation) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}

// Active reports whether the reservation still blocks its room.
func (r Reservation) Active() bool {
	return !r.Canceled
}

// Clone returns a deep copy so callers can mutate without aliasing history or pointers.
func (r Reservation) Clone() Reservation {
	out := r
	if r.MeetingTypeID != nil {
		id := *r.MeetingTypeID
		out.MeetingTypeID = &id
	}
	if r.CanceledAt != nil {
		at := *r.CanceledAt
		out.CanceledAt = &at
	}
	if r.ChangeHistory != nil {
		out.ChangeHistory = make([]ChangeEntry, len(r.ChangeHistory))
		copy(out.ChangeHistory, r.ChangeHistory)
	}
	return out
}

// ActiveOn returns the active reservations of roomID on date, ordered by start
// time and then ID. excludeID, when non-empty, is left out.
func ActiveOn(reservations []Reservation, roomID string, date Date, excludeID string) []Reservation {
	out := make([]Reservation, 0, len(reservations))
	for _, r := range reservations {
		if !r.Active() || r.RoomID != roomID || r.Date != date {
			continue
		}
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		out = append(out, r)
	}
	SortByStart(out)
	return out
}

// SortByStart orders reservations by date, start time and ID.
func SortByStart(reservations []Reservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
}

// SortForListing places active reservations first and canceled ones last, each
// group ordered by SortByStart.
func SortForListing(reservations []Reservation) {
	SortByStart(reservations)
	sort.SliceStable(reservations, func(i, j int) bool {
		return reservations[i].Active() && !reservations[j].Active()
	})
}
