package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	patients  map[uuid.UUID]*Patient
	allergies map[uuid.UUID][]*PatientAllergy
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		patients:  make(map[uuid.UUID]*Patient),
		allergies: make(map[uuid.UUID][]*PatientAllergy),
	}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPatientRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Search(_ context.Context, _ string, _, _ int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockPatientRepo) ListAllergies(_ context.Context, patientID uuid.UUID) ([]*PatientAllergy, error) {
	return m.allergies[patientID], nil
}

func (m *mockPatientRepo) AddAllergy(_ context.Context, a *PatientAllergy) error {
	a.ID = uuid.New()
	m.allergies[a.PatientID] = append(m.allergies[a.PatientID], a)
	return nil
}

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.New()
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return d, nil
}

func (m *mockDoctorRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.doctors[id]
	return ok, nil
}

func (m *mockDoctorRepo) ListByDepartment(_ context.Context, department string, _, _ int) ([]*Doctor, int, error) {
	var result []*Doctor
	for _, d := range m.doctors {
		if d.Department == department {
			result = append(result, d)
		}
	}
	return result, len(result), nil
}

func (m *mockDoctorRepo) List(_ context.Context, _, _ int) ([]*Doctor, int, error) {
	var result []*Doctor
	for _, d := range m.doctors {
		result = append(result, d)
	}
	return result, len(result), nil
}

// -- Tests --

func TestRegisterPatientRequiresName(t *testing.T) {
	svc := NewService(newMockPatientRepo(), newMockDoctorRepo())
	err := svc.RegisterPatient(context.Background(), &Patient{Name: "  "})
	if !httperr.IsKind(err, httperr.KindBadRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestGetPatientNotFound(t *testing.T) {
	svc := NewService(newMockPatientRepo(), newMockDoctorRepo())
	_, err := svc.GetPatient(context.Background(), uuid.New())
	if !httperr.IsKind(err, httperr.KindNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestAddAllergyUnknownPatient(t *testing.T) {
	svc := NewService(newMockPatientRepo(), newMockDoctorRepo())
	err := svc.AddAllergy(context.Background(), &PatientAllergy{PatientID: uuid.New(), Substance: "penicillin"})
	if !httperr.IsKind(err, httperr.KindNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestAllergySubstances(t *testing.T) {
	patients := newMockPatientRepo()
	svc := NewService(patients, newMockDoctorRepo())

	p := &Patient{Name: "Aye Chan"}
	if err := svc.RegisterPatient(context.Background(), p); err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	for _, sub := range []string{"penicillin", "sulfa"} {
		if err := svc.AddAllergy(context.Background(), &PatientAllergy{PatientID: p.ID, Substance: sub}); err != nil {
			t.Fatalf("AddAllergy: %v", err)
		}
	}

	subs, err := svc.AllergySubstances(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("AllergySubstances: %v", err)
	}
	if len(subs) != 2 || subs[0] != "penicillin" {
		t.Errorf("subs = %v", subs)
	}
}

func TestCreateDoctorValidation(t *testing.T) {
	svc := NewService(newMockPatientRepo(), newMockDoctorRepo())
	if err := svc.CreateDoctor(context.Background(), &Doctor{Name: "Dr. Hla"}); !httperr.IsKind(err, httperr.KindBadRequest) {
		t.Fatalf("missing department: err = %v", err)
	}
	if err := svc.CreateDoctor(context.Background(), &Doctor{Name: "Dr. Hla", Department: "Cardiology"}); err != nil {
		t.Fatalf("CreateDoctor: %v", err)
	}
}
