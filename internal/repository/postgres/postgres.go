package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/phms-engine/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type medicationRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewMedicationRepository(db *sqlx.DB) repository.MedicationRepository {
	return &medicationRepository{db: db}
}
