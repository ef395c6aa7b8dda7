package vitals

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/phms-engine/internal/model"
)

const (
	historySheet    = "Vitals"
	thresholdsSheet = "Thresholds"
)

var historyHeader = []string{
	"Timestamp",
	"Heart Rate (bpm)",
	"Glucose (mg/dL)",
	"Systolic (mmHg)",
	"Diastolic (mmHg)",
	"Cholesterol (mg/dL)",
}

// ExportXLSX renders samples and the active thresholds as a spreadsheet.
func ExportXLSX(samples []model.VitalSample, t model.ThresholdValues, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, historySheet, 1, toAny(historyHeader)); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(historyHeader), 1)
	if err := f.SetCellStyle(historySheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(historySheet, "A", "A", 22); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(historySheet, "B", "F", 18); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, s := range samples {
		row := []any{
			time.UnixMilli(s.TimestampMs).In(loc).Format("2006-01-02 15:04:05"),
			cellValue(s.HeartRate),
			cellValue(s.Glucose),
			cellValue(s.BPSystolic),
			cellValue(s.BPDiastolic),
			cellValue(s.Cholesterol),
		}
		if err := writeRow(f, historySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(thresholdsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	rows := [][]any{
		{"Vital", "Low", "High"},
		{"Heart Rate", t.HRLow, t.HRHigh},
		{"Systolic BP", t.BPSysLow, t.BPSysHigh},
		{"Diastolic BP", t.BPDiaLow, t.BPDiaHigh},
		{"Glucose", t.GlucoseLow, t.GlucoseHigh},
		{"Cholesterol", t.CholesterolLow, t.CholesterolHigh},
	}
	for i, row := range rows {
		if err := writeRow(f, thresholdsSheet, i+1, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(thresholdsSheet, "A1", "C1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func cellValue(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
