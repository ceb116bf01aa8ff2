package dataroom

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"aip-platform/deal-portal-backend/internal/auth"
)

// ExportActivityRegister renders the room's activity log as an xlsx
// workbook. Creator-only, same as the activity listing.
func (s *Service) ExportActivityRegister(ctx context.Context, actor auth.Actor, roomID uint) ([]byte, error) {
	activities, err := s.Activity(ctx, actor, roomID, ActivityFilter{})
	if err != nil {
		return nil, err
	}
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Activity"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Timestamp", "User ID", "Activity", "Document ID", "Client IP", "User Agent", "Duration (s)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		f.SetRowStyle(sheet, 1, 1, headerStyle)
	}

	for row, a := range activities {
		values := []interface{}{
			a.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			a.UserID,
			a.ActivityType,
			deref(a.DocumentID),
			derefStr(a.ClientIP),
			derefStr(a.UserAgent),
			deref64(a.DurationSecs),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetCellValue(sheet, fmt.Sprintf("A%d", len(activities)+3),
		fmt.Sprintf("Activity register for data room %q (%d events)", room.Name, len(activities)))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deref(v *uint) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func deref64(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
