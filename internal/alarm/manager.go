// Package alarm is an in-process exact timer facility. Registrations live in
// memory only and are lost when the process exits; boot recovery rebuilds them.
package alarm

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
)

// FireFunc receives the payload of a timer that went off.
type FireFunc func(ctx context.Context, payload model.ReminderPayload)

type entry struct {
	payload   model.ReminderPayload
	nextFire  time.Time
	repeating bool
	hour      int
	minute    int
	timer     *time.Timer
	gen       uint64
}

type Manager struct {
	mu      sync.Mutex
	entries map[model.TimerIdentity]*entry
	gen     uint64

	granted     atomic.Bool
	handler     FireFunc
	fireTimeout time.Duration
	loc         *time.Location
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger  *logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithFireTimeout bounds how long one fire handler may run.
func WithFireTimeout(d time.Duration) Option {
	return func(m *Manager) { m.fireTimeout = d }
}

// WithPermission sets the initial exact scheduling grant.
func WithPermission(granted bool) Option {
	return func(m *Manager) { m.granted.Store(granted) }
}

func NewManager(handler FireFunc, logger *logger.Logger, metrics *metrics.Metrics, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		entries:     make(map[model.TimerIdentity]*entry),
		handler:     handler,
		fireTimeout: 30 * time.Second,
		loc:         time.Local,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("alarm"),
		metrics:     metrics,
	}
	m.granted.Store(true)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) HasExactSchedulingPermission() bool {
	return m.granted.Load()
}

// SetPermission grants or revokes exact scheduling. Revoking does not touch
// existing registrations.
func (m *Manager) SetPermission(granted bool) {
	m.granted.Store(granted)
}

// RegisterExact arms a one-shot timer, replacing any timer with the same id.
func (m *Manager) RegisterExact(id model.TimerIdentity, fireAt time.Time, payload model.ReminderPayload) error {
	if !m.HasExactSchedulingPermission() {
		return errors.PermissionDenied("exact scheduling")
	}
	m.arm(id, &entry{payload: payload, nextFire: fireAt})
	return nil
}

// RegisterRepeatingDaily arms a timer at hour:minute every day, starting with the
// next occurrence after now.
func (m *Manager) RegisterRepeatingDaily(id model.TimerIdentity, hour, minute int, payload model.ReminderPayload) error {
	if !m.HasExactSchedulingPermission() {
		return errors.PermissionDenied("exact scheduling")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return errors.MalformedInput("daily time out of range", nil)
	}
	m.arm(id, &entry{
		payload:   payload,
		nextFire:  NextDaily(m.now(), hour, minute, m.loc),
		repeating: true,
		hour:      hour,
		minute:    minute,
	})
	return nil
}

// Cancel stops and forgets the timer. A handler that is already running is not
// interrupted.
func (m *Manager) Cancel(id model.TimerIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok {
		e.timer.Stop()
		delete(m.entries, id)
		m.metrics.ActiveTimers.Set(float64(len(m.entries)))
	}
}

// Pending lists live registrations ordered by next fire time.
func (m *Manager) Pending() []model.PendingTimer {
	m.mu.Lock()
	out := make([]model.PendingTimer, 0, len(m.entries))
	for id, e := range m.entries {
		out = append(out, model.PendingTimer{
			Identity:  id,
			NextFire:  e.nextFire,
			Repeating: e.repeating,
			Payload:   e.payload,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].NextFire.Equal(out[j].NextFire) {
			return out[i].Identity < out[j].Identity
		}
		return out[i].NextFire.Before(out[j].NextFire)
	})
	return out
}

// Close stops every timer and waits for running handlers.
func (m *Manager) Close() {
	m.mu.Lock()
	for id, e := range m.entries {
		e.timer.Stop()
		delete(m.entries, id)
	}
	m.metrics.ActiveTimers.Set(0)
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) arm(id model.TimerIdentity, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[id]; ok {
		old.timer.Stop()
	}
	m.gen++
	e.gen = m.gen
	e.timer = time.AfterFunc(e.nextFire.Sub(m.now()), func() { m.fire(id, e.gen) })
	m.entries[id] = e
	m.metrics.ActiveTimers.Set(float64(len(m.entries)))
}

func (m *Manager) fire(id model.TimerIdentity, gen uint64) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || e.gen != gen {
		// cancelled or replaced after the runtime timer had already expired
		m.mu.Unlock()
		return
	}
	payload := e.payload
	if e.repeating {
		e.nextFire = NextDaily(e.nextFire, e.hour, e.minute, m.loc)
		e.timer = time.AfterFunc(e.nextFire.Sub(m.now()), func() { m.fire(id, gen) })
	} else {
		delete(m.entries, id)
		m.metrics.ActiveTimers.Set(float64(len(m.entries)))
	}
	m.wg.Add(1)
	m.mu.Unlock()

	defer m.wg.Done()
	if m.ctx.Err() != nil {
		return
	}

	m.logger.Debug("Timer fired", "identity", int64(id), "kind", string(payload.Kind))
	ctx, cancel := context.WithTimeout(m.ctx, m.fireTimeout)
	defer cancel()
	m.handler(ctx, payload)
}

// NextDaily returns the first hour:minute in loc strictly after from.
func NextDaily(from time.Time, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := from.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
