package report

import (
	"bytes"
	"testing"
	"time"

	"ipal-monitor/internal/aggregate"
	"ipal-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateAlertsExport(t *testing.T) {
	value, threshold := 9.4, 9.0
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	alerts := []models.Alert{
		{
			ID: "a1", IPALID: 7, Type: "VIOLATION", Severity: "critical", Status: "active",
			Parameter: "ph", Location: "outlet", Value: &value, Threshold: &threshold,
			Message: "pH above limit", CreatedAt: created,
		},
		{ID: "a2", IPALID: 7, Type: "SENSOR_FAULT", Severity: "high", Status: "active"},
	}
	set := aggregate.Set{Total: 2, Severity: aggregate.SeverityCounts{Critical: 1, High: 1}}

	data, err := GenerateAlertsExport(alerts, set)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{alertsSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(alertsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, AlertExportHeader, rows[0])
	assert.Equal(t, "a1", rows[1][0])
	assert.Equal(t, "9.4", rows[1][7])
	assert.Equal(t, "2024-05-01 08:30:00", rows[1][10])
	assert.Equal(t, "SENSOR_FAULT", rows[2][2])

	total, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	critical, err := f.GetCellValue(summarySheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, "1", critical)
}

func TestGenerateAlertsExport_Empty(t *testing.T) {
	data, err := GenerateAlertsExport(nil, aggregate.Set{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(alertsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
