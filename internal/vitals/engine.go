package vitals

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
	"github.com/jwalitptl/phms-engine/pkg/validator"
)

const (
	DefaultInterval      = 3500 * time.Millisecond
	DefaultHistorySize   = 75
	DefaultInitialPoints = 15
)

type Config struct {
	Interval      time.Duration
	HistorySize   int
	InitialPoints int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.InitialPoints < 0 || c.InitialPoints > c.HistorySize {
		c.InitialPoints = DefaultInitialPoints
	}
	return c
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Engine runs the vitals simulation. A single goroutine produces samples and
// owns the previous sample; thresholds are swapped as whole snapshots.
type Engine struct {
	cfg       Config
	rnd       Rand
	now       func() time.Time
	store     ThresholdStore
	sink      AlertSink
	validator validator.Validator

	history    *History
	thresholds atomic.Pointer[model.ThresholdValues]
	last       *model.VitalSample

	lifeMu sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}

	subMu   sync.Mutex
	subs    map[int]chan model.VitalSample
	nextSub int

	logger  *logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

// WithRand replaces the random source. The engine is its only user.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cfg Config, store ThresholdStore, sink AlertSink, logger *logger.Logger, metrics *metrics.Metrics, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:       cfg,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		store:     store,
		sink:      sink,
		validator: validator.New(),
		history:   NewHistory(cfg.HistorySize),
		subs:      make(map[int]chan model.VitalSample),
		logger:    logger.Named("vitals"),
		metrics:   metrics,
	}
	defaults := model.DefaultThresholds()
	e.thresholds.Store(&defaults)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads thresholds, backfills the history and launches the generation
// loop. The loop stops when ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("vitals engine is %s", e.State())
	}

	t, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Error(err, "Failed to load thresholds, using defaults")
		t = model.DefaultThresholds()
	}
	e.thresholds.Store(&t)

	e.backfill(e.cfg.InitialPoints)

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(loopCtx)

	e.logger.Info("Vitals engine started", "interval", e.cfg.Interval.String(), "history", e.history.Len())
	return nil
}

// Stop ends the loop and waits for it. It is safe to call more than once.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		e.state.CompareAndSwap(int32(StateIdle), int32(StateStopped))
		return
	}
	e.cancel()
	<-e.done

	e.subMu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.subMu.Unlock()
	e.logger.Info("Vitals engine stopped")
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	// first live sample lands half an interval after the backfill
	first := time.NewTimer(e.cfg.Interval / 2)
	defer first.Stop()
	select {
	case <-ctx.Done():
		return
	case <-first.C:
		e.tick(ctx)
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick produces, stores and evaluates one sample. Only the loop goroutine
// calls it.
func (e *Engine) tick(ctx context.Context) model.VitalSample {
	timer := prometheus.NewTimer(e.metrics.TickDuration)
	defer timer.ObserveDuration()

	sample := NextSample(e.last, e.nextTimestamp(), e.rnd)
	e.last = &sample
	e.history.Append(sample)
	e.metrics.VitalTicks.Inc()
	e.metrics.VitalHistorySize.Set(float64(e.history.Len()))

	for _, alert := range Evaluate(sample, *e.thresholds.Load()) {
		e.metrics.VitalAlerts.WithLabelValues(alert.VitalName).Inc()
		if err := e.sink.Publish(ctx, alert); err != nil {
			e.logger.Error(err, "Failed to publish vital alert", "vital", alert.VitalName)
		}
	}

	e.broadcast(sample)
	return sample
}

// nextTimestamp never returns a value at or before the previous sample.
func (e *Engine) nextTimestamp() int64 {
	ts := e.now().UnixMilli()
	if e.last != nil && ts <= e.last.TimestampMs {
		ts = e.last.TimestampMs + 1
	}
	return ts
}

// backfill seeds the history with count samples spaced one interval apart and
// ending one interval before now.
func (e *Engine) backfill(count int) {
	if count <= 0 {
		return
	}
	step := e.cfg.Interval.Milliseconds()
	ts := e.now().UnixMilli() - int64(count)*step

	seed := seedSample(ts)
	e.history.Append(seed)
	e.last = &seed

	for i := 1; i < count; i++ {
		ts += step
		sample := NextSample(e.last, ts, e.rnd)
		e.history.Append(sample)
		e.last = &sample
	}
	e.metrics.VitalHistorySize.Set(float64(e.history.Len()))
}

// History returns a copy of the buffered samples, oldest first.
func (e *Engine) History() []model.VitalSample {
	return e.history.Snapshot()
}

// Thresholds returns the snapshot used for the next evaluation.
func (e *Engine) Thresholds() model.ThresholdValues {
	return *e.thresholds.Load()
}

// SaveThresholds validates and persists t, then makes it the active snapshot.
// The change applies from the next sample on.
func (e *Engine) SaveThresholds(ctx context.Context, t model.ThresholdValues) error {
	if err := e.validator.Validate(t); err != nil {
		return errors.BadRequest(err.Error(), err)
	}
	if err := e.store.Save(ctx, t); err != nil {
		return errors.Internal(fmt.Errorf("save thresholds: %w", err))
	}
	e.thresholds.Store(&t)
	e.logger.Info("Thresholds updated")
	return nil
}

// Subscribe streams new samples. Slow subscribers miss samples rather than
// stall the loop. The returned func unsubscribes.
func (e *Engine) Subscribe(buffer int) (<-chan model.VitalSample, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan model.VitalSample, buffer)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			close(c)
			delete(e.subs, id)
		}
	}
}

func (e *Engine) broadcast(s model.VitalSample) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// EmitTestAlert pushes a synthetic alert through the sinks without touching the
// history.
func (e *Engine) EmitTestAlert(ctx context.Context, vitalName string, value float64) (model.VitalAlert, error) {
	if vitalName == "" {
		vitalName = HeartRateHigh
	}
	t := e.Thresholds()
	threshold, high := thresholdFor(vitalName, t)
	alert := newAlert(vitalName, value, threshold, high, e.now().UnixMilli())
	if err := e.sink.Publish(ctx, alert); err != nil {
		return alert, err
	}
	return alert, nil
}

func thresholdFor(name string, t model.ThresholdValues) (float64, bool) {
	switch name {
	case HeartRateLow:
		return t.HRLow, false
	case SystolicHigh:
		return t.BPSysHigh, true
	case SystolicLow:
		return t.BPSysLow, false
	case DiastolicHigh:
		return t.BPDiaHigh, true
	case DiastolicLow:
		return t.BPDiaLow, false
	case GlucoseHigh:
		return t.GlucoseHigh, true
	case GlucoseLow:
		return t.GlucoseLow, false
	case CholesterolHigh:
		return t.CholesterolHigh, true
	case CholesterolLow:
		return t.CholesterolLow, false
	default:
		return t.HRHigh, true
	}
}
