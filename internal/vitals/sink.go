package vitals

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
	"github.com/jwalitptl/phms-engine/pkg/worker"
)

// AlertSink receives threshold crossings.
type AlertSink interface {
	Publish(ctx context.Context, alert model.VitalAlert) error
}

// LogSink writes alerts to the log.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(logger *logger.Logger) *LogSink {
	return &LogSink{logger: logger.Named("vital-alert")}
}

func (s *LogSink) Publish(_ context.Context, a model.VitalAlert) error {
	s.logger.Warn("Simulated vital alert",
		"vital", a.VitalName,
		"value", math.Round(a.Value),
		"threshold", math.Round(a.Threshold),
		"alert_id", a.ID.String())
	return nil
}

// MultiSink publishes to every sink and joins their errors.
type MultiSink []AlertSink

func (m MultiSink) Publish(ctx context.Context, a model.VitalAlert) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncSink queues alerts for a slow sink so Publish never blocks. Alerts are
// dropped and counted when the queue is full.
type AsyncSink struct {
	queue   *worker.Queue[model.VitalAlert]
	metrics *metrics.Metrics
}

func NewAsyncSink(name string, next AlertSink, cfg worker.QueueConfig, logger *logger.Logger, metrics *metrics.Metrics) *AsyncSink {
	return &AsyncSink{
		queue:   worker.NewQueue(name, cfg, next.Publish, logger),
		metrics: metrics,
	}
}

// Start runs the consumer until ctx is cancelled.
func (s *AsyncSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

func (s *AsyncSink) Done() <-chan struct{} {
	return s.queue.Done()
}

func (s *AsyncSink) Publish(_ context.Context, a model.VitalAlert) error {
	if !s.queue.Enqueue(a) {
		s.metrics.AlertSinkDropped.Inc()
	}
	return nil
}

// FanoutSink delivers each alert to every member. Members added with
// AddQueued get a queue of their own, so a failing member is retried alone and
// never causes a second delivery on the others.
type FanoutSink struct {
	cfg     worker.QueueConfig
	logger  *logger.Logger
	metrics *metrics.Metrics

	sinks  MultiSink
	queues []*AsyncSink
}

func NewFanoutSink(cfg worker.QueueConfig, logger *logger.Logger, metrics *metrics.Metrics) *FanoutSink {
	return &FanoutSink{cfg: cfg, logger: logger, metrics: metrics}
}

// Add registers a sink that is cheap and never blocks, such as LogSink.
func (f *FanoutSink) Add(s AlertSink) {
	f.sinks = append(f.sinks, s)
}

// AddQueued registers a sink that does I/O.
func (f *FanoutSink) AddQueued(name string, s AlertSink) {
	q := NewAsyncSink("alert-"+name, s, f.cfg, f.logger, f.metrics)
	f.queues = append(f.queues, q)
	f.sinks = append(f.sinks, q)
}

func (f *FanoutSink) Len() int {
	return len(f.sinks)
}

// Start runs every queue and returns once all of them have stopped.
func (f *FanoutSink) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, q := range f.queues {
		wg.Add(1)
		go func(q *AsyncSink) {
			defer wg.Done()
			q.Start(ctx)
		}(q)
	}
	wg.Wait()
}

func (f *FanoutSink) Publish(ctx context.Context, a model.VitalAlert) error {
	return f.sinks.Publish(ctx, a)
}
