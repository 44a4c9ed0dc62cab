package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
)

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
}

func NewService(patients PatientRepository, doctors DoctorRepository) *Service {
	return &Service{patients: patients, doctors: doctors}
}

// -- Patient --

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return httperr.BadRequest("name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, httperr.NotFound("Patient not found")
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if _, err := s.patients.GetByID(ctx, p.ID); err != nil {
		return httperr.NotFound("Patient not found")
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) SearchPatients(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, name, limit, offset)
}

func (s *Service) AddAllergy(ctx context.Context, a *PatientAllergy) error {
	if strings.TrimSpace(a.Substance) == "" {
		return httperr.BadRequest("substance is required")
	}
	exists, err := s.patients.Exists(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("check patient: %w", err)
	}
	if !exists {
		return httperr.NotFound("Patient not found")
	}
	return s.patients.AddAllergy(ctx, a)
}

func (s *Service) ListAllergies(ctx context.Context, patientID uuid.UUID) ([]*PatientAllergy, error) {
	return s.patients.ListAllergies(ctx, patientID)
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if strings.TrimSpace(d.Name) == "" {
		return httperr.BadRequest("name is required")
	}
	if strings.TrimSpace(d.Department) == "" {
		return httperr.BadRequest("department is required")
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, httperr.NotFound("Doctor not found")
	}
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, department string, limit, offset int) ([]*Doctor, int, error) {
	if department != "" {
		return s.doctors.ListByDepartment(ctx, department, limit, offset)
	}
	return s.doctors.List(ctx, limit, offset)
}

// PatientExists reports whether the patient id is known. Consumed by the
// scheduling admission checks.
func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.patients.Exists(ctx, id)
}

// DoctorExists reports whether the doctor id is known.
func (s *Service) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.doctors.Exists(ctx, id)
}

// AllergySubstances returns the patient's known allergy substances.
func (s *Service) AllergySubstances(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	allergies, err := s.patients.ListAllergies(ctx, patientID)
	if err != nil {
		return nil, err
	}
	subs := make([]string, 0, len(allergies))
	for _, a := range allergies {
		subs = append(subs, a.Substance)
	}
	return subs, nil
}
