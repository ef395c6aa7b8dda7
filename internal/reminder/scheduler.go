package reminder

import (
	"context"
	"time"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/internal/repository"
	"github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
)

// Timer is the exact-alarm facility reminders are registered with.
type Timer interface {
	HasExactSchedulingPermission() bool
	RegisterExact(id model.TimerIdentity, fireAt time.Time, payload model.ReminderPayload) error
	RegisterRepeatingDaily(id model.TimerIdentity, hour, minute int, payload model.ReminderPayload) error
	// Cancel removes a registration. Unknown identities are ignored.
	Cancel(id model.TimerIdentity)
}

// PromptStore persists whether the user was already asked for the exact
// scheduling permission on this install.
type PromptStore interface {
	ExactAlarmPrompted(ctx context.Context) (bool, error)
	MarkExactAlarmPrompted(ctx context.Context) error
}

// Prompter asks the user to grant exact scheduling.
type Prompter interface {
	RequestExactSchedulingPermission(ctx context.Context) error
}

// SyncResult summarises a bulk scheduling pass.
type SyncResult struct {
	UserID       string `json:"userId"`
	Appointments int    `json:"appointments"`
	Medications  int    `json:"medications"`
	Timers       int    `json:"timers"`
	Failures     int    `json:"failures"`
}

type Scheduler struct {
	timer        Timer
	appointments repository.AppointmentRepository
	medications  repository.MedicationRepository
	prompts      PromptStore
	prompter     Prompter
	loc          *time.Location
	now          func() time.Time
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the zone appointment wall-clock times are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPermissionPrompt enables the one-time permission prompt.
func WithPermissionPrompt(store PromptStore, prompter Prompter) Option {
	return func(s *Scheduler) {
		s.prompts = store
		s.prompter = prompter
	}
}

func NewScheduler(
	timer Timer,
	appointments repository.AppointmentRepository,
	medications repository.MedicationRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		timer:        timer,
		appointments: appointments,
		medications:  medications,
		loc:          time.Local,
		now:          time.Now,
		logger:       logger.Named("reminder-scheduler"),
		metrics:      metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for appointment times.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// ScheduleAppointment replaces the appointment's timers with the triggers that
// are still in the future. It returns the number of timers registered.
func (s *Scheduler) ScheduleAppointment(ctx context.Context, appt *model.Appointment) (int, error) {
	if appt == nil || appt.ID == nil {
		s.skip("unpersisted")
		return 0, nil
	}
	s.CancelAppointment(*appt.ID)

	if !appt.WantsReminders() {
		s.skip("disabled")
		return 0, nil
	}

	triggers, err := AppointmentTriggers(appt, s.loc, s.now())
	if err != nil {
		s.skip("malformed")
		s.logger.Warn("Skipping appointment with malformed date/time",
			"appointment_id", *appt.ID, "error", err.Error())
		return 0, err
	}
	if len(triggers) == 0 {
		s.skip("past")
		return 0, nil
	}

	if !s.timer.HasExactSchedulingPermission() {
		return 0, s.permissionMissing(ctx, "appointment", *appt.ID)
	}

	registered := 0
	for _, t := range triggers {
		payload := appointmentPayload(appt, t)
		if err := s.timer.RegisterExact(t.Identity, t.FireAt, payload); err != nil {
			s.registrationFailed(ctx, err, t.Identity)
			continue
		}
		registered++
		s.metrics.RemindersScheduled.WithLabelValues(string(t.Kind)).Inc()
		s.logger.Debug("Scheduled appointment reminder",
			"appointment_id", *appt.ID, "identity", int64(t.Identity), "fire_at", t.FireAt)
	}
	return registered, nil
}

// CancelAppointment removes both appointment triggers.
func (s *Scheduler) CancelAppointment(appointmentID int64) {
	for _, id := range AppointmentIdentities(appointmentID) {
		s.timer.Cancel(id)
	}
	s.metrics.RemindersCancelled.WithLabelValues("appointment").Inc()
}

// ScheduleMedication replaces the medication's timers with one daily repeating
// timer per dose slot. It returns the number of timers registered.
func (s *Scheduler) ScheduleMedication(ctx context.Context, med *model.Medication) (int, error) {
	if med == nil || med.ID == nil {
		s.skip("unpersisted")
		return 0, nil
	}
	s.CancelMedication(*med.ID)

	doses, dropped, err := ParseDoseTimes(med)
	if err != nil {
		s.skip("malformed")
		s.logger.Warn("Skipping medication with malformed dose times",
			"medication_id", *med.ID, "error", err.Error())
		return 0, err
	}
	if dropped > 0 {
		s.skip("dose_limit")
		s.logger.Warn("Medication exceeds the daily dose limit, extra doses not scheduled",
			"medication_id", *med.ID, "limit", MaxDailyDoses, "dropped", dropped)
	}

	if !s.timer.HasExactSchedulingPermission() {
		return 0, s.permissionMissing(ctx, "medication", *med.ID)
	}

	registered := 0
	for _, dose := range doses {
		id := MedicationIdentity(*med.ID, dose.Index)
		if err := s.timer.RegisterRepeatingDaily(id, dose.Hour, dose.Minute, medicationPayload(med, id, dose.Index)); err != nil {
			s.registrationFailed(ctx, err, id)
			continue
		}
		registered++
		s.metrics.RemindersScheduled.WithLabelValues(string(model.TriggerMedicationDose)).Inc()
		s.logger.Debug("Scheduled medication reminder",
			"medication_id", *med.ID, "identity", int64(id), "at", dose.String())
	}
	return registered, nil
}

// CancelMedication sweeps every dose slot a medication can own.
func (s *Scheduler) CancelMedication(medicationID int64) {
	for _, id := range MedicationIdentities(medicationID) {
		s.timer.Cancel(id)
	}
	s.metrics.RemindersCancelled.WithLabelValues("medication").Inc()
}

// ScheduleAllForUser re-runs scheduling for every upcoming appointment and every
// medication of the user. A failed listing skips that entity type for this pass.
func (s *Scheduler) ScheduleAllForUser(ctx context.Context, userID string) SyncResult {
	result := SyncResult{UserID: userID}

	appts, err := s.appointments.ListUpcomingAppointments(ctx, userID)
	if err != nil {
		s.skip("fetch_failed")
		s.logger.Error(errors.TransientFetch("appointments", err), "Skipping appointment sync", "user_id", userID)
		result.Failures++
	}
	for _, appt := range appts {
		n, err := s.ScheduleAppointment(ctx, appt)
		if err != nil {
			result.Failures++
		}
		result.Appointments++
		result.Timers += n
	}

	meds, err := s.medications.ListMedications(ctx, userID)
	if err != nil {
		s.skip("fetch_failed")
		s.logger.Error(errors.TransientFetch("medications", err), "Skipping medication sync", "user_id", userID)
		result.Failures++
	}
	for _, med := range meds {
		n, err := s.ScheduleMedication(ctx, med)
		if err != nil {
			result.Failures++
		}
		result.Medications++
		result.Timers += n
	}

	s.logger.Info("Reminder sync finished",
		"user_id", userID,
		"appointments", result.Appointments,
		"medications", result.Medications,
		"timers", result.Timers,
		"failures", result.Failures)
	return result
}

func (s *Scheduler) skip(reason string) {
	s.metrics.RemindersSkipped.WithLabelValues(reason).Inc()
}

// permissionMissing logs the refusal and prompts the user once per install.
func (s *Scheduler) permissionMissing(ctx context.Context, entity string, id int64) error {
	s.skip("permission")
	s.logger.Warn("Exact scheduling permission missing, reminders not registered",
		"entity", entity, "entity_id", id)
	s.promptOnce(ctx)
	return errors.PermissionDenied("exact scheduling")
}

func (s *Scheduler) registrationFailed(ctx context.Context, err error, id model.TimerIdentity) {
	if errors.HasCode(err, errors.ErrPermissionDenied) {
		s.skip("permission")
		s.logger.Warn("Timer registration refused", "identity", int64(id))
		s.promptOnce(ctx)
		return
	}
	s.skip("register_failed")
	s.logger.Error(err, "Timer registration failed", "identity", int64(id))
}

func (s *Scheduler) promptOnce(ctx context.Context) {
	if s.prompts == nil || s.prompter == nil {
		return
	}
	prompted, err := s.prompts.ExactAlarmPrompted(ctx)
	if err != nil {
		s.logger.Error(err, "Failed to read permission prompt flag")
		return
	}
	if prompted {
		return
	}
	if err := s.prompter.RequestExactSchedulingPermission(ctx); err != nil {
		s.logger.Error(err, "Failed to prompt for exact scheduling permission")
		return
	}
	if err := s.prompts.MarkExactAlarmPrompted(ctx); err != nil {
		s.logger.Error(err, "Failed to persist permission prompt flag")
	}
}

func appointmentPayload(appt *model.Appointment, t Trigger) model.ReminderPayload {
	return model.ReminderPayload{
		Kind:       t.Kind,
		Identity:   t.Identity,
		EntityID:   *appt.ID,
		UserID:     appt.UserID,
		DoctorName: appt.DoctorDisplayName(),
		Date:       appt.Date,
		Time:       appt.Time,
		Reason:     appt.Reason,
	}
}

func medicationPayload(med *model.Medication, id model.TimerIdentity, index int) model.ReminderPayload {
	return model.ReminderPayload{
		Kind:           model.TriggerMedicationDose,
		Identity:       id,
		EntityID:       *med.ID,
		UserID:         med.UserID,
		TimeIndex:      index,
		MedicationName: med.Name,
		Dosage:         med.Dosage,
		Instructions:   med.Instructions,
	}
}
