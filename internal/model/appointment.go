package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment dates and times are local wall-clock values as entered by the user.
const (
	AppointmentDateLayout = "2006-01-02"
	AppointmentTimeLayout = "15:04"
)

type Appointment struct {
	ID         *int64            `db:"id" json:"id,omitempty"`
	UserID     string            `db:"user_id" json:"userId" validate:"required"`
	DoctorID   int64             `db:"doctor_id" json:"doctorId"`
	DoctorName *string           `db:"doctor_name" json:"doctorName,omitempty"`
	Date       string            `db:"date" json:"date" validate:"required"`
	Time       string            `db:"time" json:"time" validate:"required"`
	Duration   int               `db:"duration" json:"duration"`
	Reason     string            `db:"reason" json:"reason"`
	Notes      *string           `db:"notes" json:"notes,omitempty"`
	Status     AppointmentStatus `db:"status" json:"status"`
	Reminders  bool              `db:"reminders" json:"reminders"`
}

// StartsAt parses Date and Time as a wall-clock instant in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(AppointmentDateLayout+" "+AppointmentTimeLayout, a.Date+" "+a.Time, loc)
}

// WantsReminders is false once reminders are switched off or the visit is cancelled.
func (a *Appointment) WantsReminders() bool {
	return a.Reminders && a.Status != AppointmentStatusCancelled
}

// DoctorDisplayName falls back to a generic label when the name is unknown.
func (a *Appointment) DoctorDisplayName() string {
	if a.DoctorName == nil || *a.DoctorName == "" {
		return "your doctor"
	}
	return *a.DoctorName
}
