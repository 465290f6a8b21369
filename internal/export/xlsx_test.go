package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/room-scheduler/internal/scheduler"
)

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	standup := "standup"
	reservations := []scheduler.Reservation{
		{
			ID:               "res-1",
			RoomID:           "R1",
			RequesterID:      "u-alice",
			RequesterName:    "Alice",
			Date:             scheduler.NewDate(2024, time.May, 6),
			Start:            scheduler.NewTimeOfDay(10, 0),
			End:              scheduler.NewTimeOfDay(11, 0),
			MeetingTypeID:    &standup,
			ParticipantCount: 3,
			Notes:            "週次定例",
		},
		{
			ID:               "res-2",
			RoomID:           "R9",
			RequesterID:      "u-bob",
			Date:             scheduler.NewDate(2024, time.May, 7),
			Start:            scheduler.NewTimeOfDay(9, 0),
			End:              scheduler.NewTimeOfDay(9, 30),
			ParticipantCount: 2,
			Canceled:         true,
			CancelReason:     "延期",
		},
	}
	catalog := Catalog{
		Rooms:        map[string]string{"R1": "Aoi"},
		MeetingTypes: map[string]string{"standup": "朝会"},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, reservations, catalog); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != SheetName {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "予約ID" || len(rows[0]) != len(Header) {
		t.Fatalf("unexpected header: %v", rows[0])
	}

	first := rows[1]
	want := []string{"res-1", "Aoi", "2024-05-06", "10:00", "11:00", "Alice", "3", "朝会", "週次定例", "有効"}
	for i, v := range want {
		if first[i] != v {
			t.Fatalf("column %d: expected %q, got %q (row %v)", i, v, first[i], first)
		}
	}

	second := rows[2]
	if second[1] != "R9" || second[5] != "u-bob" || second[7] != "" || second[9] != "キャンセル" || second[10] != "延期" {
		t.Fatalf("unexpected canceled row: %v", second)
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, nil, Catalog{}); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d", len(rows))
	}
}
