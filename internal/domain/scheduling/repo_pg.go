package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/db"
	"github.com/macmann/Thu-Kha-EMR/pkg/timeutil"
)

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

func (r *availabilityRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *availabilityRepoPG) WindowsForDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) ([]Window, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_min, end_min FROM doctor_availability
		WHERE doctor_id = $1 AND day_of_week = $2
		ORDER BY start_min ASC`, doctorID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var windows []Window
	for rows.Next() {
		var w Window
		if err := rows.Scan(&w.StartMin, &w.EndMin); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (r *availabilityRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, doctor_id, day_of_week, start_min, end_min, created_at
		FROM doctor_availability WHERE doctor_id = $1
		ORDER BY day_of_week ASC, start_min ASC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.DoctorID, &w.DayOfWeek, &w.StartMin, &w.EndMin, &w.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &w)
	}
	return items, rows.Err()
}

func (r *availabilityRepoPG) ReplaceForDoctor(ctx context.Context, doctorID uuid.UUID, windows []*AvailabilityWindow) error {
	conn := r.conn(ctx)
	if _, err := conn.Exec(ctx, `DELETE FROM doctor_availability WHERE doctor_id = $1`, doctorID); err != nil {
		return err
	}
	for _, w := range windows {
		w.ID = uuid.New()
		if _, err := conn.Exec(ctx, `
			INSERT INTO doctor_availability (id, doctor_id, day_of_week, start_min, end_min)
			VALUES ($1,$2,$3,$4,$5)`,
			w.ID, doctorID, w.DayOfWeek, w.StartMin, w.EndMin); err != nil {
			return err
		}
	}
	return nil
}

// =========== Blackout Repository ===========

type blackoutRepoPG struct{ pool *pgxpool.Pool }

func NewBlackoutRepoPG(pool *pgxpool.Pool) BlackoutRepository { return &blackoutRepoPG{pool: pool} }

func (r *blackoutRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *blackoutRepoPG) Create(ctx context.Context, b *Blackout) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_blackout (id, doctor_id, start_at, end_at, reason)
		VALUES ($1,$2,$3,$4,$5)`,
		b.ID, b.DoctorID, b.StartAt, b.EndAt, b.Reason)
	return err
}

func (r *blackoutRepoPG) HasOverlap(ctx context.Context, doctorID uuid.UUID, startAt, endAt time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_blackout
			WHERE doctor_id = $1 AND start_at < $3 AND end_at > $2
		)`, doctorID, startAt, endAt).Scan(&exists)
	return exists, err
}

func (r *blackoutRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Blackout, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, doctor_id, start_at, end_at, reason, created_at
		FROM doctor_blackout WHERE doctor_id = $1 ORDER BY start_at ASC`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Blackout
	for rows.Next() {
		var b Blackout
		if err := rows.Scan(&b.ID, &b.DoctorID, &b.StartAt, &b.EndAt, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &b)
	}
	return items, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, patient_id, doctor_id, department, date, start_time_min, end_time_min,
	status, reason, location, cancel_reason, visit_id, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Department, &a.Date,
		&a.StartTimeMin, &a.EndTimeMin, &a.Status, &a.Reason, &a.Location,
		&a.CancelReason, &a.VisitID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, department, date,
			start_time_min, end_time_min, status, reason, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.PatientID, a.DoctorID, a.Department, a.Date,
		a.StartTimeMin, a.EndTimeMin, a.Status, a.Reason, a.Location)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET patient_id=$2, doctor_id=$3, department=$4, date=$5,
			start_time_min=$6, end_time_min=$7, status=$8, reason=$9, location=$10,
			cancel_reason=$11, visit_id=$12, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.DoctorID, a.Department, a.Date,
		a.StartTimeMin, a.EndTimeMin, a.Status, a.Reason, a.Location,
		a.CancelReason, a.VisitID)
	return err
}

func (r *appointmentRepoPG) HasOverlap(ctx context.Context, doctorID uuid.UUID, date time.Time, startMin, endMin int, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE doctor_id = $1 AND date = $2 AND status <> 'Cancelled'
			  AND start_time_min < $4 AND end_time_min > $3`
	args := []interface{}{doctorID, date, startMin, endMin}
	if excludeID != nil {
		query += ` AND id <> $5`
		args = append(args, *excludeID)
	}
	query += `)`

	var exists bool
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) ListActiveByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND date = $2 AND status <> 'Cancelled'
		ORDER BY start_time_min ASC`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["doctor"]; ok {
		query += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND doctor_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["date"]; ok {
		query += fmt.Sprintf(` AND date = $%d`, idx)
		countQuery += fmt.Sprintf(` AND date = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY date DESC, start_time_min ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *appointmentRepoPG) LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) error {
	key := doctorID.String() + "@" + date.UTC().Format(timeutil.DateLayout)
	return db.AdvisoryLock(ctx, r.conn(ctx), key)
}
