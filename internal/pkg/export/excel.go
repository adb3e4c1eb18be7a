package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tecolab/ssptime-go/internal/domain/attendance"
	"github.com/xuri/excelize/v2"
)

const sheetName = "加班記錄"

var headers = []string{"日期", "上班時間", "下班時間", "總工時(分)", "加班時數(分)"}

// Writer renders a fetch result as an overtime report workbook.
type Writer struct {
	outputDir string
}

func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// Write saves the report as
// <outputDir>/overtime_report_YYYYMMDD_HHMMSS.xlsx and returns the path.
func (w *Writer) Write(result attendance.FetchResult) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return "", err
		}
	}

	row := 2
	for _, r := range result.Results {
		workedMinutes := int(r.Record.ClockOut.Sub(r.Record.ClockIn).Minutes())
		values := []interface{}{
			r.Record.Date.Format("2006/01/02"),
			r.Record.ClockIn.Format("15:04:05"),
			r.Record.ClockOut.Format("15:04:05"),
			workedMinutes,
			r.OvertimeMinutes.StringFixed(2),
		}
		if err := setRow(f, row, values); err != nil {
			return "", err
		}
		row++
	}

	// Summary block below the data, original report layout.
	summary := result.Summary
	summaryRows := [][]interface{}{
		{""},
		{"統計資訊"},
		{"記錄天數", summary.RecordDays},
		{"加班天數", summary.OvertimeDays},
		{"總加班時數(分)", summary.TotalOvertimeMinutes.StringFixed(2)},
		{"平均每日加班(分)", summary.AverageOvertimeMinutes.StringFixed(2)},
		{"最長加班(分)", summary.MaxOvertimeMinutes.StringFixed(2)},
	}
	if summary.MaxOvertimeDate != nil {
		summaryRows = append(summaryRows,
			[]interface{}{"最長加班日期", summary.MaxOvertimeDate.Format("2006/01/02")})
	}
	for _, values := range summaryRows {
		if err := setRow(f, row, values); err != nil {
			return "", err
		}
		row++
	}

	if err := f.SetColWidth(sheetName, "A", "A", 16); err != nil {
		return "", err
	}
	if err := f.SetColWidth(sheetName, "B", "E", 12); err != nil {
		return "", err
	}

	path := filepath.Join(w.outputDir,
		fmt.Sprintf("overtime_report_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return path, nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return err
		}
	}
	return nil
}
