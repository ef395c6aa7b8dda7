package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phms-engine/internal/reminder"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/messaging"
)

type countingResyncer struct {
	calls int32
}

func (r *countingResyncer) OnBoot(context.Context) (reminder.SyncResult, bool) {
	atomic.AddInt32(&r.calls, 1)
	return reminder.SyncResult{UserID: "uid-1", Timers: 3}, true
}

func TestReminderRecheckWorker_Ticks(t *testing.T) {
	r := &countingResyncer{}
	w := NewReminderRecheckWorker(r, 10*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&r.calls) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestReminderRecheckWorker_Disabled(t *testing.T) {
	r := &countingResyncer{}
	NewReminderRecheckWorker(r, 0, logger.Nop()).Start(context.Background())
	assert.Zero(t, atomic.LoadInt32(&r.calls))
}

type memUsers struct {
	mu   sync.Mutex
	last string
}

func (m *memUsers) SetLastActiveUser(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = uid
	return nil
}

type recordingScheduler struct {
	users []string
}

func (s *recordingScheduler) ScheduleAllForUser(_ context.Context, uid string) reminder.SyncResult {
	s.users = append(s.users, uid)
	return reminder.SyncResult{UserID: uid}
}

func message(t *testing.T, eventType string, payload interface{}) messaging.Message {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return messaging.Message{Type: eventType, Payload: raw}
}

func TestUserActivityConsumer_Handle(t *testing.T) {
	users := &memUsers{}
	sched := &recordingScheduler{}
	c := NewUserActivityConsumer(nil, "events", users, sched, logger.Nop())
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, message(t, EventUserActive, UserActivePayload{UserID: "uid-7"})))
	assert.Equal(t, "uid-7", users.last)
	assert.Equal(t, []string{"uid-7"}, sched.users)

	require.NoError(t, c.Handle(ctx, message(t, "something.else", nil)))
	assert.Len(t, sched.users, 1)

	assert.Error(t, c.Handle(ctx, message(t, EventUserActive, UserActivePayload{})))
	assert.Len(t, sched.users, 1)
}
