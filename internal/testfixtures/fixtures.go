package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/scheduler"
)

var (
	roomCounter        uint64
	meetingTypeCounter uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate is the default reservation date, the day after ReferenceTime.
func ReferenceDate() scheduler.Date {
	return scheduler.DateOf(referenceTime).AddDays(1)
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic meeting room record.
type RoomFixture struct {
	ID        string
	Name      string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic active room with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  int(4 + idx%4),
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomInactive marks the room as not bookable.
func WithRoomInactive() RoomOption {
	return func(f *RoomFixture) {
		f.Active = false
	}
}

func (f RoomFixture) Domain() scheduler.Room {
	return scheduler.Room{ID: f.ID, Name: f.Name, Capacity: f.Capacity, Active: f.Active}
}

func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Active:    f.Active,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ------------------------- Meeting type fixtures -------------------------

// MeetingTypeFixture represents a deterministic meeting type record.
type MeetingTypeFixture struct {
	ID        string
	Name      string
	Active    bool
	SortOrder int
}

// MeetingTypeOption configures the generated meeting type fixture.
type MeetingTypeOption func(*MeetingTypeFixture)

// NewMeetingTypeFixture returns a deterministic active meeting type.
func NewMeetingTypeFixture(opts ...MeetingTypeOption) MeetingTypeFixture {
	idx := atomic.AddUint64(&meetingTypeCounter, 1)
	fixture := MeetingTypeFixture{
		ID:        fmt.Sprintf("mt-%03d", idx),
		Name:      fmt.Sprintf("Meeting Type %03d", idx),
		Active:    true,
		SortOrder: int(idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMeetingTypeID overrides the generated meeting type ID.
func WithMeetingTypeID(id string) MeetingTypeOption {
	return func(f *MeetingTypeFixture) {
		f.ID = id
	}
}

// WithMeetingTypeInactive hides the meeting type from selection.
func WithMeetingTypeInactive() MeetingTypeOption {
	return func(f *MeetingTypeFixture) {
		f.Active = false
	}
}

func (f MeetingTypeFixture) Domain() scheduler.MeetingType {
	return scheduler.MeetingType{ID: f.ID, Name: f.Name, Active: f.Active}
}

func (f MeetingTypeFixture) Persistence() persistence.MeetingType {
	return persistence.MeetingType{
		ID:        f.ID,
		Name:      f.Name,
		Active:    f.Active,
		SortOrder: f.SortOrder,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// ------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic reservation. The default is a
// 10:00-11:00 booking of room-001 on ReferenceDate by user-001.
type ReservationFixture struct {
	ID               string
	RoomID           string
	RequesterID      string
	RequesterName    string
	Date             scheduler.Date
	Start            scheduler.TimeOfDay
	End              scheduler.TimeOfDay
	MeetingTypeID    *string
	ParticipantCount int
	Notes            string
	Canceled         bool
	CanceledAt       *time.Time
	CancelReason     string
	History          []scheduler.ChangeEntry
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic active reservation with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ReservationFixture{
		ID:               fmt.Sprintf("res-%03d", idx),
		RoomID:           "room-001",
		RequesterID:      "user-001",
		RequesterName:    "User 001",
		Date:             ReferenceDate(),
		Start:            scheduler.NewTimeOfDay(10, 0),
		End:              scheduler.NewTimeOfDay(11, 0),
		ParticipantCount: 2,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationRoom overrides the booked room.
func WithReservationRoom(roomID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.RoomID = roomID
	}
}

// WithReservationRequester overrides the requester identity.
func WithReservationRequester(id, name string) ReservationOption {
	return func(f *ReservationFixture) {
		f.RequesterID = id
		f.RequesterName = name
	}
}

// WithReservationDate overrides the booked date.
func WithReservationDate(date scheduler.Date) ReservationOption {
	return func(f *ReservationFixture) {
		f.Date = date
	}
}

// WithReservationTimes overrides the booked interval using HH:MM values. It
// panics on malformed input since fixtures are written by hand.
func WithReservationTimes(start, end string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = mustTime(start)
		f.End = mustTime(end)
	}
}

// WithReservationMeetingType sets the meeting type.
func WithReservationMeetingType(id string) ReservationOption {
	return func(f *ReservationFixture) {
		value := id
		f.MeetingTypeID = &value
	}
}

// WithReservationParticipants overrides the participant count.
func WithReservationParticipants(n int) ReservationOption {
	return func(f *ReservationFixture) {
		f.ParticipantCount = n
	}
}

// WithReservationNotes overrides the free text notes.
func WithReservationNotes(notes string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Notes = notes
	}
}

// WithReservationCanceled marks the reservation canceled at the given time.
func WithReservationCanceled(at time.Time, reason string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Canceled = true
		f.CanceledAt = &at
		f.CancelReason = reason
		f.UpdatedAt = at
	}
}

// WithReservationHistory sets the change history.
func WithReservationHistory(entries ...scheduler.ChangeEntry) ReservationOption {
	return func(f *ReservationFixture) {
		f.History = append([]scheduler.ChangeEntry(nil), entries...)
	}
}

func (f ReservationFixture) Domain() scheduler.Reservation {
	r := scheduler.Reservation{
		ID:               f.ID,
		RoomID:           f.RoomID,
		RequesterID:      f.RequesterID,
		RequesterName:    f.RequesterName,
		Date:             f.Date,
		Start:            f.Start,
		End:              f.End,
		MeetingTypeID:    f.MeetingTypeID,
		ParticipantCount: f.ParticipantCount,
		Notes:            f.Notes,
		Canceled:         f.Canceled,
		CanceledAt:       f.CanceledAt,
		CancelReason:     f.CancelReason,
		ChangeHistory:    f.History,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
	return r.Clone()
}

func (f ReservationFixture) Persistence() persistence.Reservation {
	model := persistence.Reservation{
		ID:               f.ID,
		RoomID:           f.RoomID,
		RequesterID:      f.RequesterID,
		RequesterName:    f.RequesterName,
		Date:             f.Date.String(),
		StartMinute:      int(f.Start),
		EndMinute:        int(f.End),
		MeetingTypeID:    f.MeetingTypeID,
		ParticipantCount: f.ParticipantCount,
		Notes:            f.Notes,
		Canceled:         f.Canceled,
		CanceledAt:       f.CanceledAt,
		CancelReason:     f.CancelReason,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
	for _, h := range f.History {
		model.History = append(model.History, persistence.ChangeEntry{
			ChangedAt: h.Timestamp,
			Field:     h.Field,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			Actor:     h.Actor,
		})
	}
	return persistence.CloneReservation(model)
}

// Principal returns the requester as the acting principal.
func (f ReservationFixture) Principal() application.Principal {
	return application.Principal{UserID: f.RequesterID, DisplayName: f.RequesterName}
}

// Input returns the fixture as a single occurrence creation request.
func (f ReservationFixture) Input() application.ReservationInput {
	return application.ReservationInput{
		RoomID:           f.RoomID,
		Date:             f.Date.String(),
		StartTime:        f.Start.String(),
		EndTime:          f.End.String(),
		MeetingTypeID:    f.MeetingTypeID,
		ParticipantCount: f.ParticipantCount,
		Notes:            f.Notes,
		Recurrence:       application.RecurrenceInput{Count: 1},
	}
}

func mustTime(value string) scheduler.TimeOfDay {
	t, err := scheduler.ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}
