package vitals

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/phms-engine/internal/model"
)

func TestExportXLSX(t *testing.T) {
	ts := time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC).UnixMilli()
	samples := []model.VitalSample{
		*sampleWith(80, 105, 120, 72, 150),
		{TimestampMs: ts, HeartRate: model.Float(81)},
	}
	samples[0].TimestampMs = ts - 3500

	data, err := ExportXLSX(samples, model.DefaultThresholds(), time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{historySheet, thresholdsSheet}, f.GetSheetList())

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, historyHeader, rows[0])
	assert.Equal(t, "2026-03-10 09:30:00", rows[2][0])
	assert.Equal(t, "81", rows[2][1])

	limits, err := f.GetRows(thresholdsSheet)
	require.NoError(t, err)
	require.Len(t, limits, 6)
	assert.Equal(t, []string{"Heart Rate", "60", "100"}, limits[1])
}
