package reminder

import (
	"github.com/jwalitptl/phms-engine/internal/model"
)

// Identity layout. An appointment owns the ten identities id*10 .. id*10+9 and a
// medication owns the hundred identities id*100 .. id*100+99. Appointment kind
// offsets must stay below appointmentStride and dose indexes below
// medicationStride, otherwise neighbouring entities collide.
const (
	appointmentStride = 10
	medicationStride  = 100

	dayBeforeOffset  = 1
	hourBeforeOffset = 2

	// MaxDailyDoses bounds both the doses registered for one medication and the
	// cancel sweep, so every registered dose is always reachable by Cancel.
	MaxDailyDoses = 4
)

// AppointmentIdentity returns the timer identity for one appointment trigger.
func AppointmentIdentity(appointmentID int64, kind model.TriggerKind) model.TimerIdentity {
	offset := int64(dayBeforeOffset)
	if kind == model.TriggerAppointmentHourBefore {
		offset = hourBeforeOffset
	}
	return model.TimerIdentity(appointmentID*appointmentStride + offset)
}

// MedicationIdentity returns the timer identity for one daily dose slot.
func MedicationIdentity(medicationID int64, timeIndex int) model.TimerIdentity {
	return model.TimerIdentity(medicationID*medicationStride + int64(timeIndex))
}

// AppointmentIdentities lists every identity an appointment can own.
func AppointmentIdentities(appointmentID int64) []model.TimerIdentity {
	return []model.TimerIdentity{
		AppointmentIdentity(appointmentID, model.TriggerAppointmentDayBefore),
		AppointmentIdentity(appointmentID, model.TriggerAppointmentHourBefore),
	}
}

// MedicationIdentities lists every identity a medication can own.
func MedicationIdentities(medicationID int64) []model.TimerIdentity {
	ids := make([]model.TimerIdentity, 0, MaxDailyDoses)
	for i := 0; i < MaxDailyDoses; i++ {
		ids = append(ids, MedicationIdentity(medicationID, i))
	}
	return ids
}
