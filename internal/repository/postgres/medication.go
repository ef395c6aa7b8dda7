package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jwalitptl/phms-engine/internal/model"
	apperrors "github.com/jwalitptl/phms-engine/pkg/errors"
)

const medicationColumns = `
	id, user_id, name, category, dosage, frequency, instructions, time
`

func (r *medicationRepository) GetMedication(ctx context.Context, id int64) (*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	var medication model.Medication
	err := r.db.GetContext(ctx, &medication, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("medication", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return &medication, nil
}

func (r *medicationRepository) ListMedications(ctx context.Context, userID string) ([]*model.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE user_id = $1 ORDER BY id ASC`

	var medications []*model.Medication
	if err := r.db.SelectContext(ctx, &medications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return medications, nil
}
