package visit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the appointment fields copied into the new visit.
type CreateInput struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	Department    string
	Date          time.Time
	Reason        *string
}

// Create persists a visit spawned from a completing appointment. It runs
// inside the caller's transaction when one is on the context.
func (s *Service) Create(ctx context.Context, in CreateInput) (uuid.UUID, error) {
	v := &Visit{
		AppointmentID: in.AppointmentID,
		PatientID:     in.PatientID,
		DoctorID:      in.DoctorID,
		Department:    in.Department,
		VisitDate:     in.Date,
		Reason:        in.Reason,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return uuid.Nil, fmt.Errorf("create visit: %w", err)
	}
	return v.ID, nil
}

// Get returns the visit with its diagnoses and notes.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, httperr.NotFound("Visit not found")
	}
	diagnoses, err := s.repo.ListDiagnoses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	notes, err := s.repo.ListNotes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if diagnoses == nil {
		diagnoses = []*Diagnosis{}
	}
	if notes == nil {
		notes = []*Note{}
	}
	return &Detail{Visit: *v, Diagnoses: diagnoses, Notes: notes}, nil
}

// VisitParties resolves the patient and doctor of a visit. The pharmacy
// domain consumes it when creating prescriptions.
func (s *Service) VisitParties(ctx context.Context, visitID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return uuid.Nil, uuid.Nil, httperr.NotFound("Visit not found")
	}
	return v.PatientID, v.DoctorID, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) AddDiagnosis(ctx context.Context, visitID uuid.UUID, diagnosis string) (*Diagnosis, error) {
	if strings.TrimSpace(diagnosis) == "" {
		return nil, httperr.BadRequest("diagnosis is required")
	}
	if _, err := s.repo.GetByID(ctx, visitID); err != nil {
		return nil, httperr.NotFound("Visit not found")
	}
	d := &Diagnosis{VisitID: visitID, Diagnosis: strings.TrimSpace(diagnosis)}
	if err := s.repo.AddDiagnosis(ctx, d); err != nil {
		return nil, fmt.Errorf("add diagnosis: %w", err)
	}
	return d, nil
}

func (s *Service) AddNote(ctx context.Context, visitID, authorID uuid.UUID, body string) (*Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, httperr.BadRequest("note body is required")
	}
	if _, err := s.repo.GetByID(ctx, visitID); err != nil {
		return nil, httperr.NotFound("Visit not found")
	}
	n := &Note{VisitID: visitID, AuthorID: authorID, Body: body}
	if err := s.repo.AddNote(ctx, n); err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	return n, nil
}
