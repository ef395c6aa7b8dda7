package reminder

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
)

func appointmentPayloadFor(id int64, kind model.TriggerKind) model.ReminderPayload {
	return model.ReminderPayload{
		Kind:     kind,
		Identity: AppointmentIdentity(id, kind),
		EntityID: id,
		UserID:   "user-1",
	}
}

func TestBuildEffects_AppointmentTemplates(t *testing.T) {
	appt := appointmentAt(7, testNow)
	appt.Time = "14:30"

	effects := BuildEffects(appointmentPayloadFor(7, model.TriggerAppointmentDayBefore), Resolved{Appointment: appt})
	require.Len(t, effects, 1)
	assert.Equal(t, EffectNotify, effects[0].Kind)
	n := effects[0].Notification
	assert.Equal(t, int64(71), n.ID)
	assert.Equal(t, model.ChannelAppointments, n.Channel)
	assert.Equal(t, "You have an appointment tomorrow", n.Title)
	assert.Equal(t, "Appointment with Dr. Rivera at 14:30\nReason: Checkup", n.Body)

	effects = BuildEffects(appointmentPayloadFor(7, model.TriggerAppointmentHourBefore), Resolved{Appointment: appt})
	require.Len(t, effects, 1)
	assert.Equal(t, int64(72), effects[0].Notification.ID)
	assert.Equal(t, "You have an appointment in 1 hour", effects[0].Notification.Title)
}

func TestBuildEffects_AppointmentUsesCurrentState(t *testing.T) {
	payload := appointmentPayloadFor(7, model.TriggerAppointmentHourBefore)
	payload.DoctorName = "Dr. Old"
	payload.Reason = ""

	appt := appointmentAt(7, testNow)
	appt.DoctorName = nil
	appt.Reason = "  "

	effects := BuildEffects(payload, Resolved{Appointment: appt})
	require.Len(t, effects, 1)
	assert.Equal(t, "Appointment with your doctor at 09:00", effects[0].Notification.Body)
}

func TestBuildEffects_AppointmentSkips(t *testing.T) {
	payload := appointmentPayloadFor(7, model.TriggerAppointmentDayBefore)

	disabled := appointmentAt(7, testNow)
	disabled.Reminders = false

	otherOwner := appointmentAt(7, testNow)
	otherOwner.UserID = "user-2"

	cancelled := appointmentAt(7, testNow)
	cancelled.Status = model.AppointmentStatusCancelled

	tests := []struct {
		name    string
		current *model.Appointment
		reason  string
	}{
		{"vanished", nil, SkipVanished},
		{"disabled", disabled, SkipDisabled},
		{"cancelled", cancelled, SkipDisabled},
		{"owner changed", otherOwner, SkipOwnerMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			effects := BuildEffects(payload, Resolved{Appointment: tt.current})
			require.Len(t, effects, 1)
			assert.Equal(t, EffectSkip, effects[0].Kind)
			assert.Equal(t, tt.reason, effects[0].Reason)
		})
	}
}

func TestBuildEffects_Medication(t *testing.T) {
	payload := model.ReminderPayload{
		Kind:      model.TriggerMedicationDose,
		Identity:  MedicationIdentity(3, 1),
		EntityID:  3,
		UserID:    "user-1",
		TimeIndex: 1,
	}

	effects := BuildEffects(payload, Resolved{Medication: medication(3, "08:00,20:00", "2")})
	require.Len(t, effects, 1)
	n := effects[0].Notification
	assert.Equal(t, int64(301), n.ID)
	assert.Equal(t, model.ChannelMedications, n.Channel)
	assert.Equal(t, "Medication Reminder", n.Title)
	assert.Equal(t, "Take 500mg of Metformin\nWith food", n.Body)

	noDosage := medication(3, "08:00,20:00", "2")
	noDosage.Dosage = ""
	noDosage.Instructions = ""
	effects = BuildEffects(payload, Resolved{Medication: noDosage})
	require.Len(t, effects, 1)
	assert.Equal(t, "Take Metformin", effects[0].Notification.Body)

	effects = BuildEffects(payload, Resolved{Medication: medication(3, "08:00", "1")})
	require.Len(t, effects, 1)
	assert.Equal(t, SkipDoseRemoved, effects[0].Reason)

	effects = BuildEffects(payload, Resolved{})
	require.Len(t, effects, 1)
	assert.Equal(t, SkipVanished, effects[0].Reason)
}

func TestReceiver_HandleFire(t *testing.T) {
	appt := appointmentAt(7, testNow)
	appts := &fakeAppointments{byID: map[int64]*model.Appointment{7: appt}}
	notifier := &fakeNotifier{}
	r := NewReceiver(appts, &fakeMedications{}, notifier, logger.Nop(), metrics.NewForTest())

	effects := r.HandleFire(context.Background(), appointmentPayloadFor(7, model.TriggerAppointmentHourBefore))
	require.Len(t, effects, 1)
	require.Len(t, notifier.shown, 1)
	assert.Equal(t, int64(72), notifier.shown[0].ID)

	effects = r.HandleFire(context.Background(), appointmentPayloadFor(8, model.TriggerAppointmentHourBefore))
	require.Len(t, effects, 1)
	assert.Equal(t, SkipVanished, effects[0].Reason)
	assert.Len(t, notifier.shown, 1)
}

func TestReceiver_FetchFailureSkips(t *testing.T) {
	appts := &fakeAppointments{err: fmt.Errorf("timeout")}
	notifier := &fakeNotifier{}
	r := NewReceiver(appts, &fakeMedications{}, notifier, logger.Nop(), metrics.NewForTest())

	effects := r.HandleFire(context.Background(), appointmentPayloadFor(7, model.TriggerAppointmentDayBefore))
	require.Len(t, effects, 1)
	assert.Equal(t, SkipFetchFailed, effects[0].Reason)
	assert.Empty(t, notifier.shown)
}

func TestReceiver_NotificationPermissionMissing(t *testing.T) {
	appts := &fakeAppointments{byID: map[int64]*model.Appointment{7: appointmentAt(7, testNow)}}
	notifier := &fakeNotifier{err: errors.PermissionDenied("notification")}
	r := NewReceiver(appts, &fakeMedications{}, notifier, logger.Nop(), metrics.NewForTest())

	assert.NotPanics(t, func() {
		r.HandleFire(context.Background(), appointmentPayloadFor(7, model.TriggerAppointmentDayBefore))
	})
	assert.Empty(t, notifier.shown)
}

func TestReceiver_ConcurrentFiresForSameEntity(t *testing.T) {
	meds := &fakeMedications{byID: map[int64]*model.Medication{3: medication(3, "08:00,12:00,18:00", "3")}}
	notifier := &fakeNotifier{}
	r := NewReceiver(&fakeAppointments{}, meds, notifier, logger.Nop(), metrics.NewForTest())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			r.HandleFire(context.Background(), model.ReminderPayload{
				Kind:      model.TriggerMedicationDose,
				Identity:  MedicationIdentity(3, idx),
				EntityID:  3,
				UserID:    "user-1",
				TimeIndex: idx,
			})
		}(i)
	}
	wg.Wait()
	assert.Len(t, notifier.shown, 3)
}
