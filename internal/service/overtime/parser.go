package overtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/tecolab/ssptime-go/internal/pkg/validator"
)

// ParseRows converts raw table rows into attendance records. A row that
// cannot be parsed is skipped with a warning; one bad row never aborts
// the sequence. Records keep the true punch times; the standard-start
// clamp happens in Compute so the stored record stays faithful.
func ParseRows(rows []attendance.RawRow) ([]attendance.AttendanceRecord, []attendance.ParseWarning) {
	records := make([]attendance.AttendanceRecord, 0, len(rows))
	var warnings []attendance.ParseWarning

	for i, row := range rows {
		record, err := parseRow(row)
		if err != nil {
			warnings = append(warnings, attendance.ParseWarning{
				Row:    i,
				Raw:    strings.Join(row, "|"),
				Reason: err.Error(),
			})
			continue
		}
		records = append(records, record)
	}
	return records, warnings
}

func parseRow(row attendance.RawRow) (attendance.AttendanceRecord, error) {
	if len(row) < 3 {
		return attendance.AttendanceRecord{}, fmt.Errorf("expected 3 columns, got %d", len(row))
	}

	date, ok := validator.ParsePortalDate(row[0])
	if !ok {
		return attendance.AttendanceRecord{}, fmt.Errorf("invalid date %q", row[0])
	}

	inStr, outStr, ok := validator.SplitTimeRange(validator.CleanCellText(row[1]))
	if !ok {
		return attendance.AttendanceRecord{}, fmt.Errorf("invalid punch range %q", row[1])
	}

	clockIn, ok := validator.IsValidClockTime(inStr)
	if !ok {
		return attendance.AttendanceRecord{}, fmt.Errorf("invalid clock-in %q", inStr)
	}
	clockOut, ok := validator.IsValidClockTime(outStr)
	if !ok {
		return attendance.AttendanceRecord{}, fmt.Errorf("invalid clock-out %q", outStr)
	}

	return attendance.AttendanceRecord{
		Date:          date,
		ClockIn:       onDate(date, clockIn),
		ClockOut:      onDate(date, clockOut),
		AnomalyReason: row[2],
	}, nil
}

func onDate(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, date.Location())
}
