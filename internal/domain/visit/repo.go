package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Visit, int, error)
	AddDiagnosis(ctx context.Context, d *Diagnosis) error
	ListDiagnoses(ctx context.Context, visitID uuid.UUID) ([]*Diagnosis, error)
	AddNote(ctx context.Context, n *Note) error
	ListNotes(ctx context.Context, visitID uuid.UUID) ([]*Note, error)
}
