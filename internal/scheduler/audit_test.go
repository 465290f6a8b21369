package scheduler

import (
	"testing"
	"time"
)

func TestDiff_SingleFieldChange(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	earlier := ChangeEntry{Timestamp: at.Add(-time.Hour), Field: FieldNotes, OldValue: "", NewValue: "agenda", Actor: "u1"}

	old := booking("res-1", "R1", NewDate(2024, 5, 10), mustTime(t, "09:00"), mustTime(t, "10:00"))
	old.ChangeHistory = []ChangeEntry{earlier}
	updated := old.Clone()
	updated.Start = mustTime(t, "09:30")

	entries := Diff(old, updated, "u2", at)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d: %+v", len(entries), entries)
	}
	got := entries[0]
	if got.Field != FieldStartTime || got.OldValue != "09:00" || got.NewValue != "09:30" || got.Actor != "u2" || !got.Timestamp.Equal(at) {
		t.Fatalf("unexpected entry %+v", got)
	}

	history := AppendHistory(old.ChangeHistory, entries...)
	if len(history) != 2 || history[0] != earlier || history[1] != got {
		t.Fatalf("unexpected history %+v", history)
	}
	if len(old.ChangeHistory) != 1 || old.ChangeHistory[0] != earlier {
		t.Fatalf("prior history was modified: %+v", old.ChangeHistory)
	}
}

func TestDiff_FieldOrderAndOptionalValues(t *testing.T) {
	t.Parallel()

	typeID := "standup"
	old := booking("res-1", "R1", NewDate(2024, 5, 10), mustTime(t, "09:00"), mustTime(t, "10:00"))
	updated := old.Clone()
	updated.RoomID = "R2"
	updated.End = mustTime(t, "10:30")
	updated.MeetingTypeID = &typeID
	updated.ParticipantCount = 4

	entries := Diff(old, updated, "u1", time.Time{})
	wantFields := []string{FieldRoom, FieldEndTime, FieldMeetingType, FieldParticipantCount}
	if len(entries) != len(wantFields) {
		t.Fatalf("expected %d entries, got %+v", len(wantFields), entries)
	}
	for i, field := range wantFields {
		if entries[i].Field != field {
			t.Fatalf("entry %d: expected %s, got %s", i, field, entries[i].Field)
		}
	}
	if entries[2].OldValue != "" || entries[2].NewValue != "standup" {
		t.Fatalf("unexpected meeting type entry %+v", entries[2])
	}
	if entries[3].OldValue != "1" || entries[3].NewValue != "4" {
		t.Fatalf("unexpected participant entry %+v", entries[3])
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	r := booking("res-1", "R1", NewDate(2024, 5, 10), mustTime(t, "09:00"), mustTime(t, "10:00"))
	if entries := Diff(r, r.Clone(), "u1", time.Now()); len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}
