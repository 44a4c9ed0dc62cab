package visit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
)

type mockRepo struct {
	visits    map[uuid.UUID]*Visit
	diagnoses map[uuid.UUID][]*Diagnosis
	notes     map[uuid.UUID][]*Note
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		visits:    make(map[uuid.UUID]*Visit),
		diagnoses: make(map[uuid.UUID][]*Diagnosis),
		notes:     make(map[uuid.UUID][]*Note),
	}
}

func (m *mockRepo) Create(_ context.Context, v *Visit) error {
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	m.visits[v.ID] = v
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return v, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*Visit, int, error) {
	var items []*Visit
	for _, v := range m.visits {
		if v.PatientID == patientID {
			items = append(items, v)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*Visit, int, error) {
	var items []*Visit
	for _, v := range m.visits {
		if v.DoctorID == doctorID {
			items = append(items, v)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) AddDiagnosis(_ context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	m.diagnoses[d.VisitID] = append(m.diagnoses[d.VisitID], d)
	return nil
}

func (m *mockRepo) ListDiagnoses(_ context.Context, visitID uuid.UUID) ([]*Diagnosis, error) {
	return m.diagnoses[visitID], nil
}

func (m *mockRepo) AddNote(_ context.Context, n *Note) error {
	n.ID = uuid.New()
	m.notes[n.VisitID] = append(m.notes[n.VisitID], n)
	return nil
}

func (m *mockRepo) ListNotes(_ context.Context, visitID uuid.UUID) ([]*Note, error) {
	return m.notes[visitID], nil
}

func createTestVisit(t *testing.T, svc *Service) uuid.UUID {
	t.Helper()
	id, err := svc.Create(context.Background(), CreateInput{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		Department:    "General",
		Date:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestCreateAndGet(t *testing.T) {
	svc := NewService(newMockRepo())
	id := createTestVisit(t, svc)

	detail, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Department != "General" {
		t.Errorf("department = %q", detail.Department)
	}
	if detail.Diagnoses == nil || detail.Notes == nil {
		t.Errorf("diagnoses/notes must be empty slices, not nil")
	}
}

func TestGetNotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Get(context.Background(), uuid.New())
	if !httperr.IsKind(err, httperr.KindNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestAddDiagnosis(t *testing.T) {
	svc := NewService(newMockRepo())
	id := createTestVisit(t, svc)

	if _, err := svc.AddDiagnosis(context.Background(), id, "  "); !httperr.IsKind(err, httperr.KindBadRequest) {
		t.Fatalf("blank diagnosis: err = %v", err)
	}
	if _, err := svc.AddDiagnosis(context.Background(), uuid.New(), "hypertension"); !httperr.IsKind(err, httperr.KindNotFound) {
		t.Fatalf("unknown visit: err = %v", err)
	}

	d, err := svc.AddDiagnosis(context.Background(), id, " hypertension ")
	if err != nil {
		t.Fatalf("AddDiagnosis: %v", err)
	}
	if d.Diagnosis != "hypertension" {
		t.Errorf("diagnosis = %q", d.Diagnosis)
	}

	detail, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Diagnoses) != 1 {
		t.Errorf("diagnoses = %d", len(detail.Diagnoses))
	}
}

func TestAddNote(t *testing.T) {
	svc := NewService(newMockRepo())
	id := createTestVisit(t, svc)
	author := uuid.New()

	if _, err := svc.AddNote(context.Background(), id, author, ""); !httperr.IsKind(err, httperr.KindBadRequest) {
		t.Fatalf("blank note: err = %v", err)
	}

	n, err := svc.AddNote(context.Background(), id, author, "stable, follow up in two weeks")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if n.AuthorID != author {
		t.Errorf("author = %v", n.AuthorID)
	}
}
