package model

import (
	"time"

	"github.com/google/uuid"
)

// VitalSample is one generated reading. Absent fields are nil.
type VitalSample struct {
	TimestampMs int64    `json:"timestampMs"`
	HeartRate   *float64 `json:"heartRate,omitempty"`
	Glucose     *float64 `json:"glucose,omitempty"`
	BPSystolic  *float64 `json:"bpSystolic,omitempty"`
	BPDiastolic *float64 `json:"bpDiastolic,omitempty"`
	Cholesterol *float64 `json:"cholesterol,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// ThresholdValues holds the user-configured alert bounds.
type ThresholdValues struct {
	HRHigh          float64 `json:"hrHigh" mapstructure:"hr_high" validate:"gt=0,gtfield=HRLow"`
	HRLow           float64 `json:"hrLow" mapstructure:"hr_low" validate:"gt=0"`
	BPSysHigh       float64 `json:"bpSysHigh" mapstructure:"bp_sys_high" validate:"gt=0,gtfield=BPSysLow"`
	BPSysLow        float64 `json:"bpSysLow" mapstructure:"bp_sys_low" validate:"gt=0"`
	BPDiaHigh       float64 `json:"bpDiaHigh" mapstructure:"bp_dia_high" validate:"gt=0,gtfield=BPDiaLow"`
	BPDiaLow        float64 `json:"bpDiaLow" mapstructure:"bp_dia_low" validate:"gt=0"`
	GlucoseHigh     float64 `json:"glucoseHigh" mapstructure:"glucose_high" validate:"gt=0,gtfield=GlucoseLow"`
	GlucoseLow      float64 `json:"glucoseLow" mapstructure:"glucose_low" validate:"gt=0"`
	CholesterolHigh float64 `json:"cholesterolHigh" mapstructure:"cholesterol_high" validate:"gt=0,gtfield=CholesterolLow"`
	CholesterolLow  float64 `json:"cholesterolLow" mapstructure:"cholesterol_low" validate:"gt=0"`
}

// Default thresholds. Diastolic high is 85 so the band does not overlap systolic low.
const (
	DefaultHRHigh          = 100.0
	DefaultHRLow           = 60.0
	DefaultBPSysHigh       = 140.0
	DefaultBPSysLow        = 95.0
	DefaultBPDiaHigh       = 85.0
	DefaultBPDiaLow        = 60.0
	DefaultGlucoseHigh     = 140.0
	DefaultGlucoseLow      = 70.0
	DefaultCholesterolHigh = 200.0
	DefaultCholesterolLow  = 100.0
)

func DefaultThresholds() ThresholdValues {
	return ThresholdValues{
		HRHigh:          DefaultHRHigh,
		HRLow:           DefaultHRLow,
		BPSysHigh:       DefaultBPSysHigh,
		BPSysLow:        DefaultBPSysLow,
		BPDiaHigh:       DefaultBPDiaHigh,
		BPDiaLow:        DefaultBPDiaLow,
		GlucoseHigh:     DefaultGlucoseHigh,
		GlucoseLow:      DefaultGlucoseLow,
		CholesterolHigh: DefaultCholesterolHigh,
		CholesterolLow:  DefaultCholesterolLow,
	}
}

// VitalAlert is emitted once per bound crossed by a sample.
type VitalAlert struct {
	ID          uuid.UUID `json:"id"`
	VitalName   string    `json:"vitalName"`
	Value       float64   `json:"value"`
	Threshold   float64   `json:"threshold"`
	IsHigh      bool      `json:"isHigh"`
	TimestampMs int64     `json:"timestampMs"`
	CreatedAt   time.Time `json:"createdAt"`
}
