package scheduler

import (
	"strconv"
	"time"
)

// Audited field names, in comparison order.
const (
	FieldRoom             = "roomId"
	FieldDate             = "date"
	FieldStartTime        = "startTime"
	FieldEndTime          = "endTime"
	FieldMeetingType      = "meetingTypeId"
	FieldParticipantCount = "participantCount"
	FieldNotes            = "notes"
	FieldCanceled         = "canceled"
)

// Diff lists one ChangeEntry per audited field whose value differs between old
// and updated, in a fixed field order.
func Diff(old, updated Reservation, actor string, at time.Time) []ChangeEntry {
	pairs := []struct {
		field    string
		old, new string
	}{
		{FieldRoom, old.RoomID, updated.RoomID},
		{FieldDate, old.Date.String(), updated.Date.String()},
		{FieldStartTime, old.Start.String(), updated.Start.String()},
		{FieldEndTime, old.End.String(), updated.End.String()},
		{FieldMeetingType, optionalString(old.MeetingTypeID), optionalString(updated.MeetingTypeID)},
		{FieldParticipantCount, strconv.Itoa(old.ParticipantCount), strconv.Itoa(updated.ParticipantCount)},
		{FieldNotes, old.Notes, updated.Notes},
	}

	var entries []ChangeEntry
	for _, p := range pairs {
		if p.old == p.new {
			continue
		}
		entries = append(entries, ChangeEntry{
			Timestamp: at,
			Field:     p.field,
			OldValue:  p.old,
			NewValue:  p.new,
			Actor:     actor,
		})
	}
	return entries
}

// AppendHistory returns history followed by entries. The input slice is never
// modified so stored history cannot be rewritten through aliasing.
func AppendHistory(history []ChangeEntry, entries ...ChangeEntry) []ChangeEntry {
	out := make([]ChangeEntry, 0, len(history)+len(entries))
	out = append(out, history...)
	return append(out, entries...)
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
