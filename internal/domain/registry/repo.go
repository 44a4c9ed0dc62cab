package registry

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error)
	ListAllergies(ctx context.Context, patientID uuid.UUID) ([]*PatientAllergy, error)
	AddAllergy(ctx context.Context, a *PatientAllergy) error
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ListByDepartment(ctx context.Context, department string, limit, offset int) ([]*Doctor, int, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}
