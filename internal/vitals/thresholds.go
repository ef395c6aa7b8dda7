package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/phms-engine/internal/model"
)

// ThresholdStore persists the ten threshold scalars.
type ThresholdStore interface {
	Load(ctx context.Context) (model.ThresholdValues, error)
	Save(ctx context.Context, t model.ThresholdValues) error
}

// Alert names.
const (
	HeartRateHigh   = "Heart Rate High"
	HeartRateLow    = "Heart Rate Low"
	SystolicHigh    = "Systolic BP High"
	SystolicLow     = "Systolic BP Low"
	DiastolicHigh   = "Diastolic BP High"
	DiastolicLow    = "Diastolic BP Low"
	GlucoseHigh     = "Glucose High"
	GlucoseLow      = "Glucose Low"
	CholesterolHigh = "Cholesterol High"
	CholesterolLow  = "Cholesterol Low"
)

type check struct {
	value    *float64
	highName string
	high     float64
	lowName  string
	low      float64
}

// Evaluate returns one alert per bound the sample crosses. Absent fields are
// not checked and a value equal to a bound is not a crossing.
func Evaluate(s model.VitalSample, t model.ThresholdValues) []model.VitalAlert {
	checks := []check{
		{s.HeartRate, HeartRateHigh, t.HRHigh, HeartRateLow, t.HRLow},
		{s.BPSystolic, SystolicHigh, t.BPSysHigh, SystolicLow, t.BPSysLow},
		{s.BPDiastolic, DiastolicHigh, t.BPDiaHigh, DiastolicLow, t.BPDiaLow},
		{s.Glucose, GlucoseHigh, t.GlucoseHigh, GlucoseLow, t.GlucoseLow},
		{s.Cholesterol, CholesterolHigh, t.CholesterolHigh, CholesterolLow, t.CholesterolLow},
	}

	var alerts []model.VitalAlert
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		v := *c.value
		if v > c.high {
			alerts = append(alerts, newAlert(c.highName, v, c.high, true, s.TimestampMs))
		}
		if v < c.low {
			alerts = append(alerts, newAlert(c.lowName, v, c.low, false, s.TimestampMs))
		}
	}
	return alerts
}

func newAlert(name string, value, threshold float64, high bool, ts int64) model.VitalAlert {
	return model.VitalAlert{
		ID:          uuid.New(),
		VitalName:   name,
		Value:       value,
		Threshold:   threshold,
		IsHigh:      high,
		TimestampMs: ts,
		CreatedAt:   time.UnixMilli(ts).UTC(),
	}
}
