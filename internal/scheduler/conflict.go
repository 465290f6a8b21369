package scheduler

// FindConflict returns the first active reservation of roomID on date whose
// interval overlaps candidate. Candidates are scanned in ascending start time so
// the result is deterministic. excludeID lets an edit ignore its own record.
func FindConflict(existing []Reservation, roomID string, date Date, candidate Interval, excludeID string) (Reservation, bool) {
	for _, r := range ActiveOn(existing, roomID, date, excludeID) {
		if candidate.Overlaps(r.Interval()) {
			return r, true
		}
	}
	return Reservation{}, false
}

// Disjoint reports whether the active reservations of every room and date have
// pairwise non-overlapping intervals.
func Disjoint(reservations []Reservation) bool {
	type roomDay struct {
		room string
		date Date
	}
	groups := make(map[roomDay][]Reservation)
	for _, r := range reservations {
		if !r.Active() {
			continue
		}
		key := roomDay{room: r.RoomID, date: r.Date}
		groups[key] = append(groups[key], r)
	}
	for _, group := range groups {
		SortByStart(group)
		for i := 1; i < len(group); i++ {
			if group[i-1].Interval().Overlaps(group[i].Interval()) {
				return false
			}
		}
	}
	return true
}
