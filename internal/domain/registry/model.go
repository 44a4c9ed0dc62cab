// Package registry manages patient and doctor records. The scheduling and
// pharmacy services consume it for existence lookups.
package registry

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	DOB       *time.Time `db:"dob" json:"dob,omitempty"`
	Gender    *string    `db:"gender" json:"gender,omitempty"`
	Contact   *string    `db:"contact" json:"contact,omitempty"`
	Insurance *string    `db:"insurance" json:"insurance,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PatientAllergy maps to the patient_allergy table. The pharmacy screener
// reads it; this table may be absent or empty in some deployments.
type PatientAllergy struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Substance string    `db:"substance" json:"substance"`
	Severity  *string   `db:"severity" json:"severity,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
