package scheduler

import (
	"math/rand"
	"testing"
)

func mustTime(t *testing.T, value string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return tod
}

func booking(id, room string, date Date, start, end TimeOfDay) Reservation {
	return Reservation{ID: id, RoomID: room, Date: date, Start: start, End: end, ParticipantCount: 1}
}

func TestFindConflict_CandidateInsideExisting(t *testing.T) {
	t.Parallel()

	date := NewDate(2024, 5, 10)
	existing := []Reservation{
		booking("res-1", "R1", date, mustTime(t, "09:00"), mustTime(t, "10:00")),
	}

	got, ok := FindConflict(existing, "R1", date, Interval{Start: mustTime(t, "09:30"), End: mustTime(t, "09:45")}, "")
	if !ok {
		t.Fatalf("expected conflict with res-1")
	}
	if got.ID != "res-1" {
		t.Fatalf("expected res-1, got %s", got.ID)
	}
}

func TestFindConflict_Filters(t *testing.T) {
	t.Parallel()

	date := NewDate(2024, 5, 10)
	nine, ten := mustTime(t, "09:00"), mustTime(t, "10:00")
	canceled := booking("canceled", "R1", date, nine, ten)
	canceled.Canceled = true

	tests := []struct {
		name      string
		existing  []Reservation
		candidate Interval
		excludeID string
		wantID    string
	}{
		{
			name:      "adjacent intervals do not conflict",
			existing:  []Reservation{booking("a", "R1", date, nine, ten)},
			candidate: Interval{Start: ten, End: mustTime(t, "11:00")},
		},
		{
			name:      "canceled reservations are ignored",
			existing:  []Reservation{canceled},
			candidate: Interval{Start: nine, End: ten},
		},
		{
			name:      "other rooms are ignored",
			existing:  []Reservation{booking("a", "R2", date, nine, ten)},
			candidate: Interval{Start: nine, End: ten},
		},
		{
			name:      "other dates are ignored",
			existing:  []Reservation{booking("a", "R1", date.AddDays(1), nine, ten)},
			candidate: Interval{Start: nine, End: ten},
		},
		{
			name:      "excluded reservation is ignored",
			existing:  []Reservation{booking("self", "R1", date, nine, ten)},
			candidate: Interval{Start: nine, End: ten},
			excludeID: "self",
		},
		{
			name: "earliest start wins regardless of input order",
			existing: []Reservation{
				booking("late", "R1", date, mustTime(t, "10:30"), mustTime(t, "11:30")),
				booking("early", "R1", date, nine, ten),
			},
			candidate: Interval{Start: mustTime(t, "09:30"), End: mustTime(t, "11:00")},
			wantID:    "early",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FindConflict(tc.existing, "R1", date, tc.candidate, tc.excludeID)
			if tc.wantID == "" {
				if ok {
					t.Fatalf("expected no conflict, got %s", got.ID)
				}
				return
			}
			if !ok || got.ID != tc.wantID {
				t.Fatalf("expected conflict with %s, got %v (%s)", tc.wantID, ok, got.ID)
			}
		})
	}
}

func TestFindConflict_GeneratedShapes(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(20240510))
	date := NewDate(2024, 5, 10)

	for i := 0; i < 500; i++ {
		s := TimeOfDay(120 + rng.Intn(1080))
		length := TimeOfDay(10 + rng.Intn(170))
		e := s + length
		existing := []Reservation{booking("existing", "R1", date, s, e)}

		shapes := []struct {
			name     string
			cand     Interval
			conflict bool
		}{
			{"starts inside", Interval{Start: s + 1 + TimeOfDay(rng.Intn(int(length-1))), End: e + 1 + TimeOfDay(rng.Intn(60))}, true},
			{"ends inside", Interval{Start: s - 1 - TimeOfDay(rng.Intn(60)), End: s + 1 + TimeOfDay(rng.Intn(int(length)))}, true},
			{"contains", Interval{Start: s - TimeOfDay(rng.Intn(60)), End: e + TimeOfDay(rng.Intn(60))}, true},
		}
		before := s - TimeOfDay(rng.Intn(30))
		shapes = append(shapes, struct {
			name     string
			cand     Interval
			conflict bool
		}{"entirely before", Interval{Start: before - 1 - TimeOfDay(rng.Intn(60)), End: before}, false})
		after := e + TimeOfDay(rng.Intn(30))
		shapes = append(shapes, struct {
			name     string
			cand     Interval
			conflict bool
		}{"entirely after", Interval{Start: after, End: after + 1 + TimeOfDay(rng.Intn(60))}, false})

		for _, shape := range shapes {
			_, ok := FindConflict(existing, "R1", date, shape.cand, "")
			if ok != shape.conflict {
				t.Fatalf("%s: existing [%s,%s) candidate [%s,%s): got conflict=%v want %v",
					shape.name, s, e, shape.cand.Start, shape.cand.End, ok, shape.conflict)
			}
		}
	}
}

func TestDisjoint(t *testing.T) {
	t.Parallel()

	date := NewDate(2024, 5, 10)
	ok := []Reservation{
		booking("a", "R1", date, mustTime(t, "09:00"), mustTime(t, "10:00")),
		booking("b", "R1", date, mustTime(t, "10:00"), mustTime(t, "11:00")),
		booking("c", "R2", date, mustTime(t, "09:30"), mustTime(t, "10:30")),
	}
	if !Disjoint(ok) {
		t.Fatalf("expected disjoint set")
	}

	overlapping := append(ok, booking("d", "R1", date, mustTime(t, "10:30"), mustTime(t, "10:45")))
	if Disjoint(overlapping) {
		t.Fatalf("expected overlap to be detected")
	}

	overlapping[3].Canceled = true
	if !Disjoint(overlapping) {
		t.Fatalf("canceled reservations must not count as overlaps")
	}
}
