package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phms-engine/internal/model"
)

func TestEvaluate_HeartRateHigh(t *testing.T) {
	th := model.DefaultThresholds()
	th.HRHigh, th.HRLow = 100, 60

	alerts := Evaluate(model.VitalSample{TimestampMs: 42, HeartRate: model.Float(105)}, th)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Heart Rate High", alerts[0].VitalName)
	assert.Equal(t, 105.0, alerts[0].Value)
	assert.Equal(t, 100.0, alerts[0].Threshold)
	assert.True(t, alerts[0].IsHigh)
	assert.Equal(t, int64(42), alerts[0].TimestampMs)
	assert.NotEqual(t, [16]byte{}, [16]byte(alerts[0].ID))
}

func TestEvaluate_MultipleCrossings(t *testing.T) {
	sample := model.VitalSample{
		HeartRate:   model.Float(55),
		Glucose:     model.Float(150),
		BPSystolic:  model.Float(120),
		BPDiastolic: model.Float(59),
		Cholesterol: model.Float(201),
	}

	alerts := Evaluate(sample, model.DefaultThresholds())
	names := make([]string, 0, len(alerts))
	for _, a := range alerts {
		names = append(names, a.VitalName)
	}
	assert.Equal(t, []string{HeartRateLow, DiastolicLow, GlucoseHigh, CholesterolHigh}, names)
}

func TestEvaluate_BoundsAreExclusive(t *testing.T) {
	sample := model.VitalSample{
		HeartRate:   model.Float(100),
		Glucose:     model.Float(70),
		BPSystolic:  model.Float(140),
		BPDiastolic: model.Float(60),
		Cholesterol: model.Float(200),
	}
	assert.Empty(t, Evaluate(sample, model.DefaultThresholds()))
}

func TestEvaluate_AbsentFieldsSkipped(t *testing.T) {
	assert.Empty(t, Evaluate(model.VitalSample{TimestampMs: 1}, model.DefaultThresholds()))
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	_, ok := h.Last()
	assert.False(t, ok)

	for ts := int64(1); ts <= 5; ts++ {
		h.Append(model.VitalSample{TimestampMs: ts})
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 3, h.Cap())

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{snap[0].TimestampMs, snap[1].TimestampMs, snap[2].TimestampMs})

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, int64(5), last.TimestampMs)

	snap[0].TimestampMs = 99
	assert.Equal(t, int64(3), h.Snapshot()[0].TimestampMs, "snapshot is a copy")
}
