// Package visit holds the clinical visit records spawned when appointments
// complete, plus the notes and diagnoses recorded against them.
package visit

import (
	"time"

	"github.com/google/uuid"
)

// Visit maps to the visit table. A visit is created exactly once, inside
// the transaction that completes its appointment.
type Visit struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Department    string    `db:"department" json:"department"`
	VisitDate     time.Time `db:"visit_date" json:"visit_date"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Diagnosis maps to the visit_diagnosis table.
type Diagnosis struct {
	ID        uuid.UUID `db:"id" json:"id"`
	VisitID   uuid.UUID `db:"visit_id" json:"visit_id"`
	Diagnosis string    `db:"diagnosis" json:"diagnosis"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Note maps to the visit_note table: free-text clinical notes appended by
// the treating doctor.
type Note struct {
	ID        uuid.UUID `db:"id" json:"id"`
	VisitID   uuid.UUID `db:"visit_id" json:"visit_id"`
	AuthorID  uuid.UUID `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Detail is a visit with its recorded diagnoses and notes.
type Detail struct {
	Visit
	Diagnoses []*Diagnosis `json:"diagnoses"`
	Notes     []*Note      `json:"notes"`
}
