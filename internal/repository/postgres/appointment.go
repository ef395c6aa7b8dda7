package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jwalitptl/phms-engine/internal/model"
	apperrors "github.com/jwalitptl/phms-engine/pkg/errors"
)

const appointmentColumns = `
	a.id, a.user_id, a.doctor_id, d.name AS doctor_name,
	to_char(a.date, 'YYYY-MM-DD') AS date, to_char(a.time, 'HH24:MI') AS time,
	a.duration, a.reason, a.notes, a.status, a.reminders
`

func (r *appointmentRepository) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		LEFT JOIN doctors d ON d.id = a.doctor_id
		WHERE a.id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// ListUpcomingAppointments returns the user's non-cancelled appointments from
// today onwards. Past entries of today are filtered by the scheduler.
func (r *appointmentRepository) ListUpcomingAppointments(ctx context.Context, userID string) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		LEFT JOIN doctors d ON d.id = a.doctor_id
		WHERE a.user_id = $1
		AND a.status <> 'cancelled'
		AND a.date >= CURRENT_DATE
		ORDER BY a.date ASC, a.time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
