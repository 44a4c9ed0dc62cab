package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/macmann/Thu-Kha-EMR/internal/domain/scheduling"
	"github.com/macmann/Thu-Kha-EMR/internal/domain/visit"
)

type stubVisitRepo struct {
	created *visit.Visit
}

func (r *stubVisitRepo) Create(ctx context.Context, v *visit.Visit) error {
	v.ID = uuid.New()
	r.created = v
	return nil
}

func (r *stubVisitRepo) GetByID(ctx context.Context, id uuid.UUID) (*visit.Visit, error) {
	return r.created, nil
}

func (r *stubVisitRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*visit.Visit, int, error) {
	return nil, 0, nil
}

func (r *stubVisitRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*visit.Visit, int, error) {
	return nil, 0, nil
}

func (r *stubVisitRepo) AddDiagnosis(ctx context.Context, d *visit.Diagnosis) error { return nil }

func (r *stubVisitRepo) ListDiagnoses(ctx context.Context, visitID uuid.UUID) ([]*visit.Diagnosis, error) {
	return nil, nil
}

func (r *stubVisitRepo) AddNote(ctx context.Context, n *visit.Note) error { return nil }

func (r *stubVisitRepo) ListNotes(ctx context.Context, visitID uuid.UUID) ([]*visit.Note, error) {
	return nil, nil
}

func TestVisitCreatorAdapter_MapsAppointmentFields(t *testing.T) {
	repo := &stubVisitRepo{}
	adapter := &VisitCreatorAdapter{svc: visit.NewService(repo)}

	reason := "follow-up"
	data := scheduling.VisitData{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		Department:    "Cardiology",
		Date:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Reason:        &reason,
	}

	id, err := adapter.CreateVisit(context.Background(), data)
	if err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a visit id")
	}

	v := repo.created
	if v == nil {
		t.Fatal("visit was not persisted")
	}
	if v.AppointmentID != data.AppointmentID {
		t.Errorf("AppointmentID = %v, want %v", v.AppointmentID, data.AppointmentID)
	}
	if v.PatientID != data.PatientID || v.DoctorID != data.DoctorID {
		t.Error("patient/doctor ids not carried over")
	}
	if v.Department != data.Department {
		t.Errorf("Department = %q, want %q", v.Department, data.Department)
	}
	if !v.VisitDate.Equal(data.Date) {
		t.Errorf("VisitDate = %v, want %v", v.VisitDate, data.Date)
	}
	if v.Reason == nil || *v.Reason != reason {
		t.Error("reason not carried over")
	}
}
