package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jwalitptl/phms-engine/internal/model"
)

const thresholdPrefix = "thresholds:"

// ThresholdStore keeps each bound under its own key so a missing key falls back
// to that bound's default only.
type ThresholdStore struct {
	kv KV
}

func NewThresholdStore(kv KV) *ThresholdStore {
	return &ThresholdStore{kv: kv}
}

type thresholdField struct {
	key string
	ptr func(*model.ThresholdValues) *float64
}

var thresholdFields = []thresholdField{
	{"hr_high", func(t *model.ThresholdValues) *float64 { return &t.HRHigh }},
	{"hr_low", func(t *model.ThresholdValues) *float64 { return &t.HRLow }},
	{"bp_sys_high", func(t *model.ThresholdValues) *float64 { return &t.BPSysHigh }},
	{"bp_sys_low", func(t *model.ThresholdValues) *float64 { return &t.BPSysLow }},
	{"bp_dia_high", func(t *model.ThresholdValues) *float64 { return &t.BPDiaHigh }},
	{"bp_dia_low", func(t *model.ThresholdValues) *float64 { return &t.BPDiaLow }},
	{"glucose_high", func(t *model.ThresholdValues) *float64 { return &t.GlucoseHigh }},
	{"glucose_low", func(t *model.ThresholdValues) *float64 { return &t.GlucoseLow }},
	{"cholesterol_high", func(t *model.ThresholdValues) *float64 { return &t.CholesterolHigh }},
	{"cholesterol_low", func(t *model.ThresholdValues) *float64 { return &t.CholesterolLow }},
}

// Load reads all ten bounds. Absent or unparseable values keep their default;
// any other read error is returned.
func (s *ThresholdStore) Load(ctx context.Context) (model.ThresholdValues, error) {
	t := model.DefaultThresholds()
	for _, f := range thresholdFields {
		raw, err := s.kv.Get(ctx, thresholdPrefix+f.key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return model.DefaultThresholds(), fmt.Errorf("load threshold %s: %w", f.key, err)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		*f.ptr(&t) = v
	}
	return t, nil
}

func (s *ThresholdStore) Save(ctx context.Context, t model.ThresholdValues) error {
	for _, f := range thresholdFields {
		raw := strconv.FormatFloat(*f.ptr(&t), 'f', -1, 64)
		if err := s.kv.Set(ctx, thresholdPrefix+f.key, raw, 0); err != nil {
			return fmt.Errorf("save threshold %s: %w", f.key, err)
		}
	}
	return nil
}
