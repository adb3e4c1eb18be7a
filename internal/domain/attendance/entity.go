package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one data row of the portal's anomaly table, one string per
// column, in document order. It carries no semantic meaning yet.
type RawRow []string

// AttendanceRecord is a single day's attendance anomaly as reported by
// the portal. ClockIn and ClockOut are full timestamps on Date's day and
// always reflect the true punch times; clamping is the calculator's job.
type AttendanceRecord struct {
	Date          time.Time `json:"date"`
	ClockIn       time.Time `json:"clock_in"`
	ClockOut      time.Time `json:"clock_out"`
	AnomalyReason string    `json:"anomaly_reason,omitempty"`
}

// OvertimeConfig holds the parameters of the overtime derivation. All
// values are caller-supplied; the calculator applies no defaults.
type OvertimeConfig struct {
	LunchBreakMinutes   int
	StandardWorkMinutes int
	RestMinutes         int
	StandardStart       TimeOfDay
	DailyCapMinutes     int
}

// OvertimeResult pairs a record with its derived overtime minutes,
// rounded up to two decimal places.
type OvertimeResult struct {
	Record          AttendanceRecord `json:"record"`
	OvertimeMinutes decimal.Decimal  `json:"overtime_minutes"`
}

// ParseWarning describes one table row that had the expected shape but
// could not be turned into an AttendanceRecord. Warnings are collected
// alongside the result, never raised as failures.
type ParseWarning struct {
	Row    int    `json:"row"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// TimeOfDay is a wall-clock time within a day, seconds precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if n, _ := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); n < 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// On anchors the time of day to the given date, in that date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, t.Second, 0, date.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}
