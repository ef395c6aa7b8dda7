package model

import "time"

// TimerIdentity keys a single registered timer. It is derived from the entity id
// and the trigger kind so that cancel always targets what schedule registered.
type TimerIdentity int64

// TriggerKind tells the receiver which message template to use.
type TriggerKind string

const (
	TriggerAppointmentDayBefore  TriggerKind = "appointment_day_before"
	TriggerAppointmentHourBefore TriggerKind = "appointment_hour_before"
	TriggerMedicationDose        TriggerKind = "medication_dose"
)

// IsAppointment reports whether the kind belongs to an appointment timer.
func (k TriggerKind) IsAppointment() bool {
	return k == TriggerAppointmentDayBefore || k == TriggerAppointmentHourBefore
}

// ReminderPayload is frozen at schedule time and handed back when the timer fires.
// Its display fields may be stale by then.
type ReminderPayload struct {
	Kind      TriggerKind   `json:"kind"`
	Identity  TimerIdentity `json:"identity"`
	EntityID  int64         `json:"entityId"`
	UserID    string        `json:"userId"`
	TimeIndex int           `json:"timeIndex"`

	DoctorName string `json:"doctorName,omitempty"`
	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	Reason     string `json:"reason,omitempty"`

	MedicationName string `json:"medicationName,omitempty"`
	Dosage         string `json:"dosage,omitempty"`
	Instructions   string `json:"instructions,omitempty"`
}

// PendingTimer describes a live registration in the timer facility.
type PendingTimer struct {
	Identity  TimerIdentity   `json:"identity"`
	NextFire  time.Time       `json:"nextFire"`
	Repeating bool            `json:"repeating"`
	Payload   ReminderPayload `json:"payload"`
}
