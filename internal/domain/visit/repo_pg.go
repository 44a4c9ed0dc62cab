package visit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit (id, appointment_id, patient_id, doctor_id, department, visit_date, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.AppointmentID, v.PatientID, v.DoctorID, v.Department, v.VisitDate, v.Reason)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	var v Visit
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, appointment_id, patient_id, doctor_id, department, visit_date, reason, created_at
		FROM visit WHERE id = $1`, id).
		Scan(&v.ID, &v.AppointmentID, &v.PatientID, &v.DoctorID, &v.Department, &v.VisitDate, &v.Reason, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repoPG) listBy(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visit WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, patient_id, doctor_id, department, visit_date, reason, created_at
		FROM visit WHERE `+column+` = $1
		ORDER BY visit_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ID, &v.AppointmentID, &v.PatientID, &v.DoctorID, &v.Department, &v.VisitDate, &v.Reason, &v.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &v)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return r.listBy(ctx, "patient_id", patientID, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Visit, int, error) {
	return r.listBy(ctx, "doctor_id", doctorID, limit, offset)
}

func (r *repoPG) AddDiagnosis(ctx context.Context, d *Diagnosis) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_diagnosis (id, visit_id, diagnosis) VALUES ($1,$2,$3)`,
		d.ID, d.VisitID, d.Diagnosis)
	return err
}

func (r *repoPG) ListDiagnoses(ctx context.Context, visitID uuid.UUID) ([]*Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_id, diagnosis, created_at FROM visit_diagnosis
		WHERE visit_id = $1 ORDER BY created_at ASC`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Diagnosis
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.VisitID, &d.Diagnosis, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *repoPG) AddNote(ctx context.Context, n *Note) error {
	n.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_note (id, visit_id, author_id, body) VALUES ($1,$2,$3,$4)`,
		n.ID, n.VisitID, n.AuthorID, n.Body)
	return err
}

func (r *repoPG) ListNotes(ctx context.Context, visitID uuid.UUID) ([]*Note, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_id, author_id, body, created_at FROM visit_note
		WHERE visit_id = $1 ORDER BY created_at ASC`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.VisitID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &n)
	}
	return items, rows.Err()
}
