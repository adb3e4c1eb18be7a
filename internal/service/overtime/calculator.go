package overtime

import (
	"github.com/shopspring/decimal"
	"github.com/tecolab/ssptime-go/internal/domain/attendance"
)

var sixty = decimal.NewFromInt(60)

// Compute derives one day's overtime minutes. It is pure and total: a
// clock-out before the effective clock-in produces a negative raw value
// that the zero floor absorbs.
//
// Steps: clamp the clock-in to no earlier than the standard start,
// count same-day worked minutes, subtract lunch, standard work and rest,
// floor at zero, round up to two decimals, cap at the daily limit.
// Rounding is ceiling-only so overtime is never under-reported.
func Compute(record attendance.AttendanceRecord, cfg attendance.OvertimeConfig) attendance.OvertimeResult {
	effectiveIn := record.ClockIn
	if standardStart := cfg.StandardStart.On(record.Date); record.ClockIn.Before(standardStart) {
		effectiveIn = standardStart
	}

	workedSeconds := int64(record.ClockOut.Sub(effectiveIn).Seconds())
	deductedSeconds := int64(cfg.LunchBreakMinutes+cfg.StandardWorkMinutes+cfg.RestMinutes) * 60

	minutes := decimal.NewFromInt(workedSeconds - deductedSeconds).Div(sixty)
	if minutes.IsNegative() {
		minutes = decimal.Zero
	}

	// Ceiling to 2 decimal places.
	minutes = minutes.Mul(decimal.NewFromInt(100)).Ceil().Div(decimal.NewFromInt(100))

	if limit := decimal.NewFromInt(int64(cfg.DailyCapMinutes)); minutes.GreaterThan(limit) {
		minutes = limit
	}

	return attendance.OvertimeResult{
		Record:          record,
		OvertimeMinutes: minutes,
	}
}

// ComputeAll maps Compute over the records, preserving order.
func ComputeAll(records []attendance.AttendanceRecord, cfg attendance.OvertimeConfig) []attendance.OvertimeResult {
	results := make([]attendance.OvertimeResult, 0, len(records))
	for _, record := range records {
		results = append(results, Compute(record, cfg))
	}
	return results
}

// Summarize aggregates the results the way the overtime report presents
// them.
func Summarize(results []attendance.OvertimeResult) attendance.Summary {
	summary := attendance.Summary{
		RecordDays:             len(results),
		TotalOvertimeMinutes:   decimal.Zero,
		AverageOvertimeMinutes: decimal.Zero,
		MaxOvertimeMinutes:     decimal.Zero,
	}
	if len(results) == 0 {
		return summary
	}

	for _, result := range results {
		summary.TotalOvertimeMinutes = summary.TotalOvertimeMinutes.Add(result.OvertimeMinutes)
		if result.OvertimeMinutes.IsPositive() {
			summary.OvertimeDays++
		}
		if result.OvertimeMinutes.GreaterThan(summary.MaxOvertimeMinutes) {
			summary.MaxOvertimeMinutes = result.OvertimeMinutes
			date := result.Record.Date
			summary.MaxOvertimeDate = &date
		}
	}
	summary.AverageOvertimeMinutes = summary.TotalOvertimeMinutes.
		DivRound(decimal.NewFromInt(int64(len(results))), 2)
	return summary
}
