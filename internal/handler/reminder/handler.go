package reminder

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/phms-engine/internal/middleware"
	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/internal/reminder"
	"github.com/jwalitptl/phms-engine/internal/repository"
	apperrors "github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/httputil"
	"github.com/jwalitptl/phms-engine/pkg/validator"
)

type Scheduler interface {
	ScheduleAppointment(ctx context.Context, appt *model.Appointment) (int, error)
	CancelAppointment(appointmentID int64)
	ScheduleMedication(ctx context.Context, med *model.Medication) (int, error)
	CancelMedication(medicationID int64)
	ScheduleAllForUser(ctx context.Context, userID string) reminder.SyncResult
}

type Timers interface {
	Pending() []model.PendingTimer
	HasExactSchedulingPermission() bool
	SetPermission(granted bool)
}

type LastUserRecorder interface {
	SetLastActiveUser(ctx context.Context, userID string) error
}

type Handler struct {
	scheduler    Scheduler
	timers       Timers
	users        LastUserRecorder
	appointments repository.AppointmentRepository
	medications  repository.MedicationRepository
	validator    validator.Validator
}

// NewHandler takes the entity repositories to resolve who owns an id before
// any of its timers are touched.
func NewHandler(
	scheduler Scheduler,
	timers Timers,
	users LastUserRecorder,
	appointments repository.AppointmentRepository,
	medications repository.MedicationRepository,
	v validator.Validator,
) *Handler {
	return &Handler{
		scheduler:    scheduler,
		timers:       timers,
		users:        users,
		appointments: appointments,
		medications:  medications,
		validator:    v,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	rem := r.Group("/reminders")
	{
		rem.POST("/appointments", h.ScheduleAppointment)
		rem.DELETE("/appointments/:id", h.CancelAppointment)
		rem.POST("/medications", h.ScheduleMedication)
		rem.DELETE("/medications/:id", h.CancelMedication)
		rem.POST("/sync", h.Sync)
		rem.GET("/pending", h.Pending)
		rem.GET("/permission", h.GetPermission)
		rem.PUT("/permission", h.SetPermission)
	}
}

type scheduleResponse struct {
	EntityID int64 `json:"entityId"`
	Timers   int   `json:"timers"`
}

func (h *Handler) ScheduleAppointment(c *gin.Context) {
	var appt model.Appointment
	if !h.bindOwned(c, &appt, &appt.UserID) {
		return
	}
	if appt.ID == nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "appointment id is required")
		return
	}
	if !h.ownsAppointment(c, *appt.ID, false) {
		return
	}

	n, err := h.scheduler.ScheduleAppointment(c.Request.Context(), &appt)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, scheduleResponse{EntityID: *appt.ID, Timers: n})
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	if !h.ownsAppointment(c, id, true) {
		return
	}
	h.scheduler.CancelAppointment(id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ScheduleMedication(c *gin.Context) {
	var med model.Medication
	if !h.bindOwned(c, &med, &med.UserID) {
		return
	}
	if med.ID == nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "medication id is required")
		return
	}
	if !h.ownsMedication(c, *med.ID, false) {
		return
	}

	n, err := h.scheduler.ScheduleMedication(c.Request.Context(), &med)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, scheduleResponse{EntityID: *med.ID, Timers: n})
}

func (h *Handler) CancelMedication(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	if !h.ownsMedication(c, id, true) {
		return
	}
	h.scheduler.CancelMedication(id)
	c.Status(http.StatusNoContent)
}

// Sync records the caller as the last active user and reschedules everything
// they own.
func (h *Handler) Sync(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.users.SetLastActiveUser(c.Request.Context(), userID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, h.scheduler.ScheduleAllForUser(c.Request.Context(), userID))
}

func (h *Handler) Pending(c *gin.Context) {
	userID := middleware.UserID(c)
	pending := make([]model.PendingTimer, 0)
	for _, p := range h.timers.Pending() {
		if p.Payload.UserID == userID {
			pending = append(pending, p)
		}
	}
	httputil.RespondWithSuccess(c, pending)
}

type permissionBody struct {
	Granted *bool `json:"granted" validate:"required"`
}

func (h *Handler) GetPermission(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{"granted": h.timers.HasExactSchedulingPermission()})
}

// SetPermission mirrors the device's exact alarm setting.
func (h *Handler) SetPermission(c *gin.Context) {
	var req permissionBody
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	h.timers.SetPermission(*req.Granted)
	httputil.RespondWithSuccess(c, gin.H{"granted": *req.Granted})
}

// bindOwned decodes the body and stamps or checks its owner against the caller.
func (h *Handler) bindOwned(c *gin.Context, obj interface{}, owner *string) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid request body")
		return false
	}

	userID := middleware.UserID(c)
	switch {
	case *owner == "":
		*owner = userID
	case *owner != userID:
		httputil.RespondWithMessage(c, http.StatusForbidden, "entity belongs to another user")
		return false
	}

	if err := h.validator.Validate(obj); err != nil {
		httputil.RespondWithMessage(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) ownsAppointment(c *gin.Context, id int64, cancelling bool) bool {
	appt, err := h.appointments.GetAppointment(c.Request.Context(), id)
	owner := ""
	if err == nil && appt != nil {
		owner = appt.UserID
	}
	return h.checkOwner(c, "appointment", owner, err, reminder.AppointmentIdentities(id), cancelling)
}

func (h *Handler) ownsMedication(c *gin.Context, id int64, cancelling bool) bool {
	med, err := h.medications.GetMedication(c.Request.Context(), id)
	owner := ""
	if err == nil && med != nil {
		owner = med.UserID
	}
	return h.checkOwner(c, "medication", owner, err, reminder.MedicationIdentities(id), cancelling)
}

// checkOwner compares the stored owner of an entity with the caller. An entity
// the backend no longer knows may still be cancelled, but only when none of its
// live registrations belong to someone else.
func (h *Handler) checkOwner(c *gin.Context, resource, owner string, err error, ids []model.TimerIdentity, cancelling bool) bool {
	userID := middleware.UserID(c)

	switch {
	case err == nil:
		if owner != userID {
			httputil.RespondWithMessage(c, http.StatusForbidden, resource+" belongs to another user")
			return false
		}
		return true
	case apperrors.HasCode(err, apperrors.ErrNotFound):
		if !cancelling {
			httputil.RespondWithError(c, err)
			return false
		}
		if !h.ownsLiveTimers(userID, ids) {
			httputil.RespondWithMessage(c, http.StatusForbidden, resource+" belongs to another user")
			return false
		}
		return true
	default:
		httputil.RespondWithError(c, apperrors.TransientFetch(resource, err))
		return false
	}
}

func (h *Handler) ownsLiveTimers(userID string, ids []model.TimerIdentity) bool {
	owned := make(map[model.TimerIdentity]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	for _, p := range h.timers.Pending() {
		if _, ok := owned[p.Identity]; ok && p.Payload.UserID != userID {
			return false
		}
	}
	return true
}

func entityID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithMessage(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
