// Package export renders reservation listings as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/room-scheduler/internal/scheduler"
)

// SheetName is the name of the single worksheet written by WriteXLSX.
const SheetName = "予約一覧"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header lists the column titles in order.
var Header = []string{"予約ID", "会議室", "日付", "開始", "終了", "予約者", "参加人数", "会議種別", "備考", "状態", "キャンセル理由"}

// Catalog resolves display names. Missing entries fall back to the raw ID.
type Catalog struct {
	Rooms        map[string]string
	MeetingTypes map[string]string
}

// WriteXLSX writes one row per reservation in the given order.
func WriteXLSX(w io.Writer, reservations []scheduler.Reservation, catalog Catalog) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: naming sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("export: writing header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	lastCol, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol, headerStyle); err != nil {
		return fmt.Errorf("export: applying header style: %w", err)
	}

	for i, r := range reservations {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := rowFor(r, catalog)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: writing row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "C", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "I", "I", 40); err != nil {
		return err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("export: freezing header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: writing workbook: %w", err)
	}
	return nil
}

func rowFor(r scheduler.Reservation, catalog Catalog) []any {
	status := "有効"
	if r.Canceled {
		status = "キャンセル"
	}
	meetingType := ""
	if r.MeetingTypeID != nil {
		meetingType = lookup(catalog.MeetingTypes, *r.MeetingTypeID)
	}
	requester := r.RequesterName
	if strings.TrimSpace(requester) == "" {
		requester = r.RequesterID
	}
	return []any{
		r.ID,
		lookup(catalog.Rooms, r.RoomID),
		r.Date.String(),
		r.Start.String(),
		r.End.String(),
		requester,
		r.ParticipantCount,
		meetingType,
		r.Notes,
		status,
		r.CancelReason,
	}
}

func lookup(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}
