package reminder

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/internal/repository"
	"github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
)

// Notifier surfaces a notification to the user. A missing notification
// permission is reported as a PermissionDenied error.
type Notifier interface {
	Show(ctx context.Context, n model.Notification) error
}

const (
	titleAppointmentTomorrow = "You have an appointment tomorrow"
	titleAppointmentSoon     = "You have an appointment in 1 hour"
	titleMedication          = "Medication Reminder"
)

type EffectKind string

const (
	EffectNotify EffectKind = "notify"
	EffectSkip   EffectKind = "skip"
)

// Skip reasons.
const (
	SkipVanished      = "vanished"
	SkipDisabled      = "disabled"
	SkipOwnerMismatch = "owner_mismatch"
	SkipDoseRemoved   = "dose_removed"
	SkipFetchFailed   = "fetch_failed"
)

// Effect is one action decided for a fired timer.
type Effect struct {
	Kind         EffectKind
	Notification model.Notification
	Reason       string
}

// Resolved is the authoritative entity state looked up at fire time. Exactly one
// field is consulted, depending on the payload kind; nil means not found.
type Resolved struct {
	Appointment *model.Appointment
	Medication  *model.Medication
}

// BuildEffects decides what a fired timer should do. It has no side effects.
func BuildEffects(payload model.ReminderPayload, current Resolved) []Effect {
	if payload.Kind.IsAppointment() {
		return appointmentEffects(payload, current.Appointment)
	}
	return medicationEffects(payload, current.Medication)
}

func appointmentEffects(p model.ReminderPayload, appt *model.Appointment) []Effect {
	switch {
	case appt == nil:
		return []Effect{skipEffect(SkipVanished)}
	case appt.UserID != p.UserID:
		return []Effect{skipEffect(SkipOwnerMismatch)}
	case !appt.WantsReminders():
		return []Effect{skipEffect(SkipDisabled)}
	}

	title := titleAppointmentTomorrow
	if p.Kind == model.TriggerAppointmentHourBefore {
		title = titleAppointmentSoon
	}
	body := fmt.Sprintf("Appointment with %s at %s", appt.DoctorDisplayName(), appt.Time)
	if reason := strings.TrimSpace(appt.Reason); reason != "" {
		body += "\nReason: " + reason
	}

	return []Effect{{
		Kind: EffectNotify,
		Notification: model.Notification{
			ID:      int64(p.Identity),
			UserID:  appt.UserID,
			Channel: model.ChannelAppointments,
			Title:   title,
			Body:    body,
		},
	}}
}

func medicationEffects(p model.ReminderPayload, med *model.Medication) []Effect {
	switch {
	case med == nil:
		return []Effect{skipEffect(SkipVanished)}
	case med.UserID != p.UserID:
		return []Effect{skipEffect(SkipOwnerMismatch)}
	}

	doses, _, err := ParseDoseTimes(med)
	if err != nil || p.TimeIndex >= len(doses) {
		return []Effect{skipEffect(SkipDoseRemoved)}
	}

	body := fmt.Sprintf("Take %s", med.Name)
	if dosage := strings.TrimSpace(med.Dosage); dosage != "" {
		body = fmt.Sprintf("Take %s of %s", dosage, med.Name)
	}
	if instructions := strings.TrimSpace(med.Instructions); instructions != "" {
		body += "\n" + instructions
	}

	return []Effect{{
		Kind: EffectNotify,
		Notification: model.Notification{
			ID:      int64(p.Identity),
			UserID:  med.UserID,
			Channel: model.ChannelMedications,
			Title:   titleMedication,
			Body:    body,
		},
	}}
}

func skipEffect(reason string) Effect {
	return Effect{Kind: EffectSkip, Reason: reason}
}

// Receiver handles fired timers: it re-fetches the entity, builds the effects
// and executes them.
type Receiver struct {
	appointments repository.AppointmentRepository
	medications  repository.MedicationRepository
	notifier     Notifier
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewReceiver(
	appointments repository.AppointmentRepository,
	medications repository.MedicationRepository,
	notifier Notifier,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Receiver {
	return &Receiver{
		appointments: appointments,
		medications:  medications,
		notifier:     notifier,
		logger:       logger.Named("reminder-receiver"),
		metrics:      metrics,
	}
}

// HandleFire processes one firing. It never returns an error for conditions
// that only mean "no notification this time".
func (r *Receiver) HandleFire(ctx context.Context, payload model.ReminderPayload) []Effect {
	current, err := r.resolve(ctx, payload)
	if err != nil {
		r.logger.Warn("Could not re-resolve reminder entity, skipping",
			"identity", int64(payload.Identity), "entity_id", payload.EntityID, "error", err.Error())
		r.metrics.RemindersFired.WithLabelValues(string(payload.Kind), SkipFetchFailed).Inc()
		return []Effect{skipEffect(SkipFetchFailed)}
	}

	effects := BuildEffects(payload, current)
	for _, e := range effects {
		r.execute(ctx, payload, e)
	}
	return effects
}

func (r *Receiver) resolve(ctx context.Context, p model.ReminderPayload) (Resolved, error) {
	if p.Kind.IsAppointment() {
		appt, err := r.appointments.GetAppointment(ctx, p.EntityID)
		if errors.HasCode(err, errors.ErrNotFound) {
			return Resolved{}, nil
		}
		if err != nil {
			return Resolved{}, errors.TransientFetch("appointment", err)
		}
		return Resolved{Appointment: appt}, nil
	}

	med, err := r.medications.GetMedication(ctx, p.EntityID)
	if errors.HasCode(err, errors.ErrNotFound) {
		return Resolved{}, nil
	}
	if err != nil {
		return Resolved{}, errors.TransientFetch("medication", err)
	}
	return Resolved{Medication: med}, nil
}

func (r *Receiver) execute(ctx context.Context, p model.ReminderPayload, e Effect) {
	if e.Kind == EffectSkip {
		r.metrics.RemindersFired.WithLabelValues(string(p.Kind), e.Reason).Inc()
		r.logger.Debug("Reminder suppressed", "identity", int64(p.Identity), "reason", e.Reason)
		return
	}

	r.metrics.RemindersFired.WithLabelValues(string(p.Kind), "notified").Inc()
	err := r.notifier.Show(ctx, e.Notification)
	switch {
	case err == nil:
		r.metrics.Notifications.WithLabelValues("shown").Inc()
	case errors.HasCode(err, errors.ErrPermissionDenied):
		r.metrics.Notifications.WithLabelValues("no_permission").Inc()
		r.logger.Warn("Notification permission missing", "identity", int64(p.Identity), "user_id", e.Notification.UserID)
	default:
		r.metrics.Notifications.WithLabelValues("failed").Inc()
		r.logger.Error(err, "Failed to show notification", "identity", int64(p.Identity))
	}
}
