package scheduler

import (
	"errors"
	"time"
)

// ErrNoSlotAvailable indicates no suggestion fits before the end of the day.
var ErrNoSlotAvailable = errors.New("scheduler: no slot available on this date")

// Policy holds the planning constants used when proposing or enumerating slots.
type Policy struct {
	// Buffer is the gap kept before and after every active reservation.
	Buffer time.Duration
	// DefaultDuration is the length of a suggested meeting.
	DefaultDuration time.Duration
	// LeadTime is added to the current time when planning for today.
	LeadTime time.Duration
	// Step is the granularity of enumerated slots.
	Step time.Duration
	// DayStart is the suggested start for dates other than today.
	DayStart TimeOfDay
	// FirstStart and LastStart bound the start slot grid as [FirstStart, LastStart).
	FirstStart TimeOfDay
	LastStart  TimeOfDay
	// LatestEnd bounds end slots when nothing follows the chosen start.
	LatestEnd TimeOfDay
}

// DefaultPolicy returns the portal's planning rules.
func DefaultPolicy() Policy {
	return Policy{
		Buffer:          5 * time.Minute,
		DefaultDuration: 60 * time.Minute,
		LeadTime:        5 * time.Minute,
		Step:            5 * time.Minute,
		DayStart:        NewTimeOfDay(8, 0),
		FirstStart:      NewTimeOfDay(7, 0),
		LastStart:       NewTimeOfDay(20, 0),
		LatestEnd:       NewTimeOfDay(21, 0),
	}
}

// Day is the planning view of one room on one date.
type Day struct {
	// Reservations are the room's reservations for the date; canceled entries are ignored.
	Reservations []Reservation
	// IsToday is true when the date equals the current date in the portal's timezone.
	IsToday bool
	// Now is the current wall clock time, only consulted when IsToday is set.
	Now TimeOfDay
}

func (d Day) active(excludeID string) []Reservation {
	out := make([]Reservation, 0, len(d.Reservations))
	for _, r := range d.Reservations {
		if !r.Active() || (excludeID != "" && r.ID == excludeID) {
			continue
		}
		out = append(out, r)
	}
	SortByStart(out)
	return out
}

// Planner proposes and enumerates conflict-free slots.
type Planner struct {
	policy Policy
}

// NewPlanner constructs a Planner. A zero Policy falls back to DefaultPolicy.
func NewPlanner(policy Policy) *Planner {
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	return &Planner{policy: policy}
}

// Policy returns the rules the planner applies.
func (p *Planner) Policy() Policy {
	return p.policy
}

// SuggestSlot proposes a start and end for a new reservation. The window is
// advanced past every buffered reservation it touches, then its end is clamped
// in front of the buffer of the reservation that follows.
func (p *Planner) SuggestSlot(day Day) (Interval, error) {
	base := p.policy.DayStart
	if day.IsToday {
		base = day.Now.Add(p.policy.LeadTime)
	}

	window := Interval{Start: base, End: base.Add(p.policy.DefaultDuration)}
	active := day.active("")

	for _, r := range active {
		if window.Overlaps(r.Interval().Pad(p.policy.Buffer)) {
			start := r.End.Add(p.policy.Buffer)
			window = Interval{Start: start, End: start.Add(p.policy.DefaultDuration)}
		}
	}

	if next, ok := nextStartingAfter(active, window.Start); ok {
		limit := next.Start.Add(-p.policy.Buffer)
		if window.End > limit && limit > window.Start {
			window.End = limit
		}
	}

	if window.Start >= MinutesPerDay {
		return Interval{}, ErrNoSlotAvailable
	}
	if window.End > MinutesPerDay {
		window.End = MinutesPerDay
	}
	return window, nil
}

// RecomputeEndTime returns the end to pair with a fixed start: the default
// duration, clamped in front of the next reservation's buffer. When the clamp
// would leave no time at all the unclamped default is returned; the caller's
// conflict check then reports the overlap.
func (p *Planner) RecomputeEndTime(day Day, start TimeOfDay, excludeID string) TimeOfDay {
	def := start.Add(p.policy.DefaultDuration)
	end := def
	if next, ok := nextStartingAfter(day.active(excludeID), start); ok && next.Start < def {
		end = next.Start.Add(-p.policy.Buffer)
	}
	if end <= start {
		end = def
	}
	if end > MinutesPerDay {
		end = MinutesPerDay
	}
	return end
}

// AvailableStartSlots enumerates step aligned starts in [FirstStart, LastStart)
// that lie outside every buffered reservation and, for today, after the lead time.
func (p *Planner) AvailableStartSlots(day Day) []TimeOfDay {
	active := day.active("")
	earliest := day.Now.Add(p.policy.LeadTime)

	slots := make([]TimeOfDay, 0)
	for t := p.policy.FirstStart; t < p.policy.LastStart; t = t.Add(p.policy.Step) {
		if day.IsToday && t <= earliest {
			continue
		}
		if blocked(active, t, p.policy.Buffer) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

// AvailableEndSlots enumerates step aligned ends in (start+Step, maxEnd], where
// maxEnd sits one buffer before the next reservation or at LatestEnd.
func (p *Planner) AvailableEndSlots(day Day, start TimeOfDay, excludeID string) []TimeOfDay {
	maxEnd := p.policy.LatestEnd
	if next, ok := nextStartingAfter(day.active(excludeID), start); ok {
		maxEnd = next.Start.Add(-p.policy.Buffer)
	}

	slots := make([]TimeOfDay, 0)
	for t := start.Add(2 * p.policy.Step); t <= maxEnd; t = t.Add(p.policy.Step) {
		slots = append(slots, t)
	}
	return slots
}

func blocked(active []Reservation, t TimeOfDay, buffer time.Duration) bool {
	for _, r := range active {
		if r.Interval().Pad(buffer).Contains(t) {
			return true
		}
	}
	return false
}

// nextStartingAfter expects active to be sorted by start.
func nextStartingAfter(active []Reservation, t TimeOfDay) (Reservation, bool) {
	for _, r := range active {
		if r.Start > t {
			return r, true
		}
	}
	return Reservation{}, false
}
