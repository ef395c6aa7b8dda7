package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/errors"
)

type registration struct {
	fireAt    time.Time
	hour      int
	minute    int
	repeating bool
	payload   model.ReminderPayload
}

type fakeTimer struct {
	mu         sync.Mutex
	granted    bool
	live       map[model.TimerIdentity]registration
	cancelled  []model.TimerIdentity
	refuseFrom map[model.TimerIdentity]bool
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{
		granted:    true,
		live:       make(map[model.TimerIdentity]registration),
		refuseFrom: make(map[model.TimerIdentity]bool),
	}
}

func (f *fakeTimer) HasExactSchedulingPermission() bool { return f.granted }

func (f *fakeTimer) RegisterExact(id model.TimerIdentity, fireAt time.Time, payload model.ReminderPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuseFrom[id] {
		return errors.PermissionDenied("exact scheduling")
	}
	f.live[id] = registration{fireAt: fireAt, payload: payload}
	return nil
}

func (f *fakeTimer) RegisterRepeatingDaily(id model.TimerIdentity, hour, minute int, payload model.ReminderPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuseFrom[id] {
		return errors.PermissionDenied("exact scheduling")
	}
	f.live[id] = registration{hour: hour, minute: minute, repeating: true, payload: payload}
	return nil
}

func (f *fakeTimer) Cancel(id model.TimerIdentity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, id)
	f.cancelled = append(f.cancelled, id)
}

// liveFor counts registrations whose payload belongs to the given entity.
func (f *fakeTimer) liveFor(kindAppointment bool, entityID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.live {
		if r.payload.EntityID == entityID && r.payload.Kind.IsAppointment() == kindAppointment {
			n++
		}
	}
	return n
}

type fakeAppointments struct {
	byID     map[int64]*model.Appointment
	upcoming map[string][]*model.Appointment
	err      error
}

func (f *fakeAppointments) GetAppointment(_ context.Context, id int64) (*model.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	appt, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("appointment", nil)
	}
	return appt, nil
}

func (f *fakeAppointments) ListUpcomingAppointments(_ context.Context, userID string) ([]*model.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.upcoming[userID], nil
}

type fakeMedications struct {
	byID   map[int64]*model.Medication
	byUser map[string][]*model.Medication
	err    error
}

func (f *fakeMedications) GetMedication(_ context.Context, id int64) (*model.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	med, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("medication", nil)
	}
	return med, nil
}

func (f *fakeMedications) ListMedications(_ context.Context, userID string) ([]*model.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	shown []model.Notification
	err   error
}

func (f *fakeNotifier) Show(_ context.Context, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.shown = append(f.shown, n)
	return nil
}

type fakePrompts struct {
	prompted bool
	asked    int
}

func (f *fakePrompts) ExactAlarmPrompted(context.Context) (bool, error) { return f.prompted, nil }
func (f *fakePrompts) MarkExactAlarmPrompted(context.Context) error {
	f.prompted = true
	return nil
}
func (f *fakePrompts) RequestExactSchedulingPermission(context.Context) error {
	f.asked++
	return nil
}

type fakeLastUser struct {
	userID string
	err    error
}

func (f fakeLastUser) LastActiveUser(context.Context) (string, bool, error) {
	return f.userID, f.userID != "", f.err
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }
