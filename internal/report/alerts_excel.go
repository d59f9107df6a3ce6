// Package report renders alert exports.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"ipal-monitor/internal/aggregate"
	"ipal-monitor/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	alertsSheet  = "Alerts"
	summarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04:05"
)

// AlertExportHeader is the header row of the alerts sheet.
var AlertExportHeader = []string{
	"Alert ID",
	"IPAL ID",
	"Type",
	"Severity",
	"Status",
	"Parameter",
	"Location",
	"Value",
	"Threshold",
	"Message",
	"Created At",
	"Resolved At",
}

var alertColumnWidths = []float64{24, 10, 30, 12, 14, 14, 12, 10, 10, 50, 20, 20}

// GenerateAlertsExport renders alerts and their aggregate as an .xlsx file.
func GenerateAlertsExport(alerts []models.Alert, set aggregate.Set) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(alertsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, alertsSheet, 1, toCells(AlertExportHeader)); err != nil {
		f.Close()
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(AlertExportHeader))
	if err := f.SetCellStyle(alertsSheet, "A1", lastCol+"1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, w := range alertColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(alertsSheet, col, col, w); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, a := range alerts {
		if err := writeRow(f, alertsSheet, i+2, alertCells(a)); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.SetPanes(alertsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := writeSummary(f, set); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func alertCells(a models.Alert) []any {
	return []any{
		a.ID,
		a.IPALID,
		a.Type,
		a.Severity,
		a.Status,
		a.Parameter,
		a.Location,
		floatCell(a.Value),
		floatCell(a.Threshold),
		a.Message,
		timeCell(&a.CreatedAt),
		timeCell(a.ResolvedAt),
	}
}

func writeSummary(f *excelize.File, set aggregate.Set) error {
	rows := [][]any{
		{"Bucket", "Count"},
		{"Total", set.Total},
		{"Active", set.Status.Active},
		{"Acknowledged", set.Status.Acknowledged},
		{"Resolved", set.Status.Resolved},
		{"Critical", set.Severity.Critical},
		{"High", set.Severity.High},
		{"Medium", set.Severity.Medium},
		{"Low", set.Severity.Low},
		{"Violation", set.Type.Violation},
		{"Sensor Fault", set.Type.SensorFault},
		{"Effectiveness", set.Type.Effectiveness},
	}
	for i, r := range rows {
		if err := writeRow(f, summarySheet, i+1, r); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 18)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		if v == nil || v == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func timeCell(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
