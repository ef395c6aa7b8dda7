package repository

import (
	"context"

	"github.com/jwalitptl/phms-engine/internal/model"
)

// Entity repositories used to re-resolve authoritative state. Implementations
// return a pkg/errors NotFound error when the entity does not exist and wrap
// every other failure as-is; callers treat both as "skip this cycle".
type (
	AppointmentRepository interface {
		GetAppointment(ctx context.Context, id int64) (*model.Appointment, error)
		ListUpcomingAppointments(ctx context.Context, userID string) ([]*model.Appointment, error)
	}

	MedicationRepository interface {
		GetMedication(ctx context.Context, id int64) (*model.Medication, error)
		ListMedications(ctx context.Context, userID string) ([]*model.Medication, error)
	}
)
