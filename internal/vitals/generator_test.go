package vitals

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phms-engine/internal/model"
)

// scriptedRand replays fixed draws. Intn values are offsets into [0, n); once a
// queue is empty it keeps returning its default.
type scriptedRand struct {
	ints         []int
	floats       []float64
	intDefault   int
	floatDefault float64
}

func (s *scriptedRand) Intn(n int) int {
	v := s.intDefault
	if len(s.ints) > 0 {
		v, s.ints = s.ints[0], s.ints[1:]
	}
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *scriptedRand) Float64() float64 {
	v := s.floatDefault
	if len(s.floats) > 0 {
		v, s.floats = s.floats[0], s.floats[1:]
	}
	return v
}

func sampleWith(hr, glucose, sys, dia, chol float64) *model.VitalSample {
	return &model.VitalSample{
		TimestampMs: 1_000,
		HeartRate:   model.Float(hr),
		Glucose:     model.Float(glucose),
		BPSystolic:  model.Float(sys),
		BPDiastolic: model.Float(dia),
		Cholesterol: model.Float(chol),
	}
}

func TestEnvelopesMatchDefaults(t *testing.T) {
	assert.Equal(t, band{62, 98}, heartRateEnvelope)
	assert.Equal(t, band{75, 135}, glucoseEnvelope)
	assert.Equal(t, band{100, 135}, systolicEnvelope)
	assert.Equal(t, band{63, 82}, diastolicEnvelope)
	assert.Equal(t, band{102, 198}, cholesterolEnvelope)
}

func TestNextSample_HeartRateStaysNormal(t *testing.T) {
	for offset := 0; offset <= 2*HeartRateStep; offset++ {
		// the first float is the cholesterol step, the next decides the HR regime
		r := &scriptedRand{ints: []int{offset}, floats: []float64{0.5, 0.0, 0.0}}
		next := NextSample(sampleWith(80, 105, 120, 72, 150), 2_000, r)
		require.NotNil(t, next.HeartRate)
		assert.GreaterOrEqual(t, *next.HeartRate, HeartRateNormalMin)
		assert.LessOrEqual(t, *next.HeartRate, HeartRateNormalMax)
		assert.Equal(t, 80+float64(offset-HeartRateStep), *next.HeartRate)
	}
}

func TestNextSample_HeartRateClampedToNormalBand(t *testing.T) {
	// +2 from 89 would be 91; the stay-normal branch clamps to 90
	r := &scriptedRand{ints: []int{4}, floats: []float64{0.5, HeartRateStayNormal - 0.01, 0}}
	next := NextSample(sampleWith(89, 105, 120, 72, 150), 2_000, r)
	assert.Equal(t, 90.0, *next.HeartRate)

	// the escape branch lets it reach 91
	r = &scriptedRand{ints: []int{4}, floats: []float64{0.5, HeartRateStayNormal, 0}}
	next = NextSample(sampleWith(89, 105, 120, 72, 150), 2_000, r)
	assert.Equal(t, 91.0, *next.HeartRate)
}

func TestNextSample_GlucosePulledBack(t *testing.T) {
	for offset := 0; offset <= 2*GlucoseStep; offset++ {
		r := &scriptedRand{ints: []int{2, offset}, floats: []float64{0.5, 0.0}}
		next := NextSample(sampleWith(80, 130, 120, 72, 150), 2_000, r)
		g := *next.Glucose
		assert.Less(t, math.Abs(g-GlucoseNormalMax), math.Abs(130-GlucoseNormalMax), "offset %d", offset)
		assert.GreaterOrEqual(t, g, glucoseEnvelope.min)
		assert.LessOrEqual(t, g, glucoseEnvelope.max)
	}

	low := NextSample(sampleWith(80, 76, 120, 72, 150), 2_000, &scriptedRand{intDefault: 0, floatDefault: 0.5})
	assert.InDelta(t, 76+(GlucoseNormalMin-76)*GlucosePull, *low.Glucose, 1e-9)
}

func TestNextSample_HeartRatePulledBack(t *testing.T) {
	next := NextSample(sampleWith(96, 105, 120, 72, 150), 2_000, &scriptedRand{intDefault: 4, floatDefault: 0.5})
	assert.InDelta(t, 96+(HeartRateNormalMax-96)*HeartRatePull, *next.HeartRate, 1e-9)
}

func TestNextSample_BloodPressureAndCholesterolBounds(t *testing.T) {
	r := &scriptedRand{intDefault: 100, floatDefault: 0.999}
	high := NextSample(sampleWith(80, 105, 135, 82, 198), 2_000, r)
	assert.Equal(t, systolicEnvelope.max, *high.BPSystolic)
	assert.Equal(t, diastolicEnvelope.max, *high.BPDiastolic)
	assert.LessOrEqual(t, *high.Cholesterol, cholesterolEnvelope.max)

	r = &scriptedRand{intDefault: 0, floatDefault: 0}
	low := NextSample(sampleWith(80, 105, 100, 63, 102), 2_000, r)
	assert.Equal(t, systolicEnvelope.min, *low.BPSystolic)
	assert.Equal(t, diastolicEnvelope.min, *low.BPDiastolic)
	assert.Equal(t, cholesterolEnvelope.min, *low.Cholesterol)
}

func TestNextSample_DiastolicBelowSystolic(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	prev := NextSample(nil, 0, r)
	for i := 1; i <= 10_000; i++ {
		next := NextSample(&prev, int64(i), r)
		assert.LessOrEqual(t, *next.BPDiastolic, *next.BPSystolic-MinPulsePressure)
		prev = next
	}
}

func TestNextSample_OrganicDriftNeverAlertsOnDefaults(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	defaults := model.DefaultThresholds()
	prev := NextSample(nil, 0, r)
	for i := 1; i <= 10_000; i++ {
		next := NextSample(&prev, int64(i), r)
		require.Empty(t, Evaluate(next, defaults), "sample %d", i)
		prev = next
	}
}

func TestNextSample_Deterministic(t *testing.T) {
	prev := sampleWith(80, 105, 120, 72, 150)
	a := NextSample(prev, 5_000, rand.New(rand.NewSource(99)))
	b := NextSample(prev, 5_000, rand.New(rand.NewSource(99)))
	assert.Equal(t, a, b)
	assert.Equal(t, int64(5_000), a.TimestampMs)
}

func TestNextSample_NilPreviousUsesSeeds(t *testing.T) {
	next := NextSample(&model.VitalSample{}, 1, &scriptedRand{intDefault: 2, floatDefault: 0.5})
	assert.Equal(t, heartRateNormal.mid(), *next.HeartRate)
	assert.Equal(t, glucoseNormal.mid()-1, *next.Glucose)
}
