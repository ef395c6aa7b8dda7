package model

// Medication is a recurring daily prescription. Time is either a single "HH:MM"
// value or a comma separated list of them; Frequency is the number of daily doses
// written as text, as the backend stores it.
type Medication struct {
	ID           *int64 `db:"id" json:"id,omitempty"`
	UserID       string `db:"user_id" json:"userId" validate:"required"`
	Name         string `db:"name" json:"name" validate:"required"`
	Category     string `db:"category" json:"category"`
	Dosage       string `db:"dosage" json:"dosage"`
	Frequency    string `db:"frequency" json:"frequency"`
	Instructions string `db:"instructions" json:"instructions"`
	Time         string `db:"time" json:"time"`
}
