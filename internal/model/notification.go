package model

type NotificationChannel string

const (
	ChannelAppointments NotificationChannel = "appointment_reminders"
	ChannelMedications  NotificationChannel = "medication_reminders"
)

// Notification is a user-facing message. ID reuses the timer identity so a later
// notification for the same trigger replaces the earlier one.
type Notification struct {
	ID      int64               `json:"id"`
	UserID  string              `json:"userId"`
	Channel NotificationChannel `json:"channel"`
	Title   string              `json:"title"`
	Body    string              `json:"body"`
}
