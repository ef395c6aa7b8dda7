package vitals

import (
	"github.com/jwalitptl/phms-engine/internal/model"
)

// Rand is the random source the generator draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Heart rate drifts inside its normal band and only rarely leaves it.
const (
	HeartRateNormalMin    = 70.0
	HeartRateNormalMax    = 90.0
	HeartRateStep         = 2
	HeartRateStayNormal   = 0.95
	HeartRateSafetyMargin = 2.0
	HeartRatePull         = 0.20
)

const (
	GlucoseNormalMin    = 85.0
	GlucoseNormalMax    = 125.0
	GlucoseStep         = 3
	GlucoseStayNormal   = 0.99
	GlucoseSafetyMargin = 5.0
	GlucosePull         = 0.25
)

const (
	SystolicStep            = 3
	SystolicSafetyMargin    = 5.0
	DiastolicStep           = 2
	DiastolicSafetyMargin   = 3.0
	CholesterolStep         = 0.75
	CholesterolSafetyMargin = 2.0

	// MinPulsePressure keeps diastolic this far below systolic.
	MinPulsePressure = 15.0
)

// Safety envelopes sit strictly inside the default alert thresholds, so organic
// drift never crosses a default bound.
var (
	heartRateEnvelope   = band{model.DefaultHRLow + HeartRateSafetyMargin, model.DefaultHRHigh - HeartRateSafetyMargin}
	glucoseEnvelope     = band{model.DefaultGlucoseLow + GlucoseSafetyMargin, model.DefaultGlucoseHigh - GlucoseSafetyMargin}
	systolicEnvelope    = band{model.DefaultBPSysLow + SystolicSafetyMargin, model.DefaultBPSysHigh - SystolicSafetyMargin}
	diastolicEnvelope   = band{model.DefaultBPDiaLow + DiastolicSafetyMargin, model.DefaultBPDiaHigh - DiastolicSafetyMargin}
	cholesterolEnvelope = band{model.DefaultCholesterolLow + CholesterolSafetyMargin, model.DefaultCholesterolHigh - CholesterolSafetyMargin}

	heartRateNormal = band{HeartRateNormalMin, HeartRateNormalMax}
	glucoseNormal   = band{GlucoseNormalMin, GlucoseNormalMax}
)

type band struct {
	min, max float64
}

func (b band) contains(v float64) bool { return v >= b.min && v <= b.max }

func (b band) clamp(v float64) float64 {
	if v < b.min {
		return b.min
	}
	if v > b.max {
		return b.max
	}
	return v
}

func (b band) mid() float64 { return (b.min + b.max) / 2 }

// nearestEdge returns the band edge closest to a value outside the band.
func (b band) nearestEdge(v float64) float64 {
	if v < b.min {
		return b.min
	}
	return b.max
}

// twoRegime describes a vital that is biased toward a normal band.
type twoRegime struct {
	normal     band
	envelope   band
	step       int
	stayNormal float64
	pull       float64
}

var (
	heartRateWalk = twoRegime{heartRateNormal, heartRateEnvelope, HeartRateStep, HeartRateStayNormal, HeartRatePull}
	glucoseWalk   = twoRegime{glucoseNormal, glucoseEnvelope, GlucoseStep, GlucoseStayNormal, GlucosePull}
)

// next advances a two-regime vital by one tick. Inside the normal band it takes
// a random step that usually stays in the band and otherwise stays within the
// envelope. Outside the band it is pulled a fixed share of the way back toward
// the nearest band edge, so it always gets strictly closer.
func (w twoRegime) next(prev, step float64, r Rand) float64 {
	if w.normal.contains(prev) {
		v := prev + step
		if r.Float64() < w.stayNormal {
			return w.normal.clamp(v)
		}
		return w.envelope.clamp(v)
	}
	target := w.normal.nearestEdge(prev)
	return w.envelope.clamp(prev + (target-prev)*w.pull)
}

// Seed values used for the first backfilled sample and for absent fields.
func seedSample(ts int64) model.VitalSample {
	return model.VitalSample{
		TimestampMs: ts,
		HeartRate:   model.Float(heartRateNormal.mid()),
		Glucose:     model.Float(glucoseNormal.mid()),
		BPSystolic:  model.Float((model.DefaultBPSysLow + model.DefaultBPSysHigh) / 2),
		BPDiastolic: model.Float((model.DefaultBPDiaLow + model.DefaultBPDiaHigh) / 2),
		Cholesterol: model.Float((model.DefaultCholesterolLow + model.DefaultCholesterolHigh) / 2),
	}
}

// NextSample derives the sample that follows prev. It only reads from r, so a
// fixed prev, timestamp and random sequence always give the same result.
//
// Random draws happen in a fixed order: integer steps for heart rate, glucose,
// systolic and diastolic, then one float for the cholesterol step, then one
// float per two-regime vital that was inside its normal band.
func NextSample(prev *model.VitalSample, ts int64, r Rand) model.VitalSample {
	seed := seedSample(ts)
	if prev == nil {
		prev = &seed
	}
	baseHR := valueOr(prev.HeartRate, *seed.HeartRate)
	baseGlucose := valueOr(prev.Glucose, *seed.Glucose)
	baseSys := valueOr(prev.BPSystolic, *seed.BPSystolic)
	baseDia := valueOr(prev.BPDiastolic, *seed.BPDiastolic)
	baseChol := valueOr(prev.Cholesterol, *seed.Cholesterol)

	hrStep := intStep(r, HeartRateStep)
	glucoseStep := intStep(r, GlucoseStep)
	sysStep := intStep(r, SystolicStep)
	diaStep := intStep(r, DiastolicStep)
	cholStep := r.Float64()*2*CholesterolStep - CholesterolStep

	hr := heartRateWalk.next(baseHR, hrStep, r)
	glucose := glucoseWalk.next(baseGlucose, glucoseStep, r)

	sys := systolicEnvelope.clamp(baseSys + sysStep)
	dia := diastolicEnvelope.clamp(baseDia + diaStep)
	if limit := sys - MinPulsePressure; dia > limit {
		dia = limit
	}
	chol := cholesterolEnvelope.clamp(baseChol + cholStep)

	return model.VitalSample{
		TimestampMs: ts,
		HeartRate:   model.Float(hr),
		Glucose:     model.Float(glucose),
		BPSystolic:  model.Float(sys),
		BPDiastolic: model.Float(dia),
		Cholesterol: model.Float(chol),
	}
}

// intStep draws a uniform integer in [-k, k].
func intStep(r Rand, k int) float64 {
	return float64(r.Intn(2*k+1) - k)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
