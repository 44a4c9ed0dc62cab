package pharmacy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/db"
)

// =========== Drug Repository ===========

type drugRepoPG struct{ pool *pgxpool.Pool }

func NewDrugRepoPG(pool *pgxpool.Pool) DrugRepository { return &drugRepoPG{pool: pool} }

func (r *drugRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const drugCols = `id, name, generic_name, form, strength, route_default, is_active, created_at`

func (r *drugRepoPG) Create(ctx context.Context, d *Drug) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO drug (id, name, generic_name, form, strength, route_default, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.Name, d.GenericName, d.Form, d.Strength, d.RouteDefault, d.IsActive)
	return err
}

func (r *drugRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Drug, error) {
	var d Drug
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+drugCols+` FROM drug WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.GenericName, &d.Form, &d.Strength, &d.RouteDefault, &d.IsActive, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *drugRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Drug, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+drugCols+` FROM drug WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		var d Drug
		if err := rows.Scan(&d.ID, &d.Name, &d.GenericName, &d.Form, &d.Strength, &d.RouteDefault, &d.IsActive, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

func (r *drugRepoPG) Search(ctx context.Context, query string, activeOnly bool, limit, offset int) ([]*Drug, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if query != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR generic_name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+query+"%")
		idx++
	}
	if activeOnly {
		where += ` AND is_active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM drug`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+drugCols+` FROM drug`+where+fmt.Sprintf(` ORDER BY name ASC LIMIT $%d OFFSET $%d`, idx, idx+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Drug
	for rows.Next() {
		var d Drug
		if err := rows.Scan(&d.ID, &d.Name, &d.GenericName, &d.Form, &d.Strength, &d.RouteDefault, &d.IsActive, &d.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &d)
	}
	return items, total, rows.Err()
}

// =========== Stock Repository ===========

type stockRepoPG struct{ pool *pgxpool.Pool }

func NewStockRepoPG(pool *pgxpool.Pool) StockRepository { return &stockRepoPG{pool: pool} }

func (r *stockRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const stockCols = `id, drug_id, batch_no, expiry_date, location, qty_on_hand, unit_cost, created_at`

func (r *stockRepoPG) Create(ctx context.Context, item *StockItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_item (id, drug_id, batch_no, expiry_date, location, qty_on_hand, unit_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.DrugID, item.BatchNo, item.ExpiryDate, item.Location, item.QtyOnHand, item.UnitCost)
	return err
}

func (r *stockRepoPG) BatchesForAllocation(ctx context.Context, drugID uuid.UUID, location string) ([]*StockItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stockCols+` FROM stock_item
		WHERE drug_id = $1 AND location = $2 AND qty_on_hand > 0
		ORDER BY expiry_date ASC NULLS LAST, created_at ASC`, drugID, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStockItems(rows)
}

// Decrement is the atomic guard against the stock race: the quantity check
// and the subtraction are one statement, so two completions cannot both
// pass a stale read.
func (r *stockRepoPG) Decrement(ctx context.Context, stockItemID uuid.UUID, qty int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE stock_item SET qty_on_hand = qty_on_hand - $2
		WHERE id = $1 AND qty_on_hand >= $2`, stockItemID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *stockRepoPG) ListByDrug(ctx context.Context, drugID uuid.UUID) ([]*StockItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+stockCols+` FROM stock_item
		WHERE drug_id = $1
		ORDER BY expiry_date ASC NULLS LAST, created_at ASC`, drugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStockItems(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanStockItems(rows rowScanner) ([]*StockItem, error) {
	var items []*StockItem
	for rows.Next() {
		var it StockItem
		if err := rows.Scan(&it.ID, &it.DrugID, &it.BatchNo, &it.ExpiryDate, &it.Location, &it.QtyOnHand, &it.UnitCost, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	conn := r.conn(ctx)
	p.ID = uuid.New()
	_, err := conn.Exec(ctx, `
		INSERT INTO prescription (id, visit_id, doctor_id, patient_id, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.VisitID, p.DoctorID, p.PatientID, p.Notes, p.Status)
	if err != nil {
		return err
	}
	for _, item := range p.Items {
		item.ID = uuid.New()
		item.PrescriptionID = p.ID
		if _, err := conn.Exec(ctx, `
			INSERT INTO prescription_item
				(id, prescription_id, drug_id, dose, route, frequency, duration_days,
				 quantity_prescribed, prn, allow_generic, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			item.ID, item.PrescriptionID, item.DrugID, item.Dose, item.Route, item.Frequency,
			item.DurationDays, item.QuantityPrescribed, item.PRN, item.AllowGeneric, item.Notes); err != nil {
			return err
		}
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, visit_id, doctor_id, patient_id, notes, status, created_at
		FROM prescription WHERE id = $1`, id).
		Scan(&p.ID, &p.VisitID, &p.DoctorID, &p.PatientID, &p.Notes, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	p.Items = items[p.ID]
	return &p, nil
}

func (r *prescriptionRepoPG) itemsFor(ctx context.Context, prescriptionIDs []uuid.UUID) (map[uuid.UUID][]*PrescriptionItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, drug_id, dose, route, frequency, duration_days,
		       quantity_prescribed, prn, allow_generic, notes
		FROM prescription_item WHERE prescription_id = ANY($1)
		ORDER BY id`, prescriptionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byRx := make(map[uuid.UUID][]*PrescriptionItem)
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.DrugID, &it.Dose, &it.Route, &it.Frequency,
			&it.DurationDays, &it.QuantityPrescribed, &it.PRN, &it.AllowGeneric, &it.Notes); err != nil {
			return nil, err
		}
		byRx[it.PrescriptionID] = append(byRx[it.PrescriptionID], &it)
	}
	return byRx, rows.Err()
}

func (r *prescriptionRepoPG) ListByStatus(ctx context.Context, statuses []PrescriptionStatus, limit, offset int) ([]*Prescription, int, error) {
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescription WHERE status = ANY($1)`, strs).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_id, doctor_id, patient_id, notes, status, created_at
		FROM prescription WHERE status = ANY($1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, strs, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Prescription
	var ids []uuid.UUID
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.VisitID, &p.DoctorID, &p.PatientID, &p.Notes, &p.Status, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(ids) > 0 {
		byRx, err := r.itemsFor(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for _, p := range items {
			p.Items = byRx[p.ID]
		}
	}
	return items, total, nil
}

func (r *prescriptionRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status PrescriptionStatus) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescription SET status = $2 WHERE id = $1`, id, status)
	return err
}

// =========== Dispense Repository ===========

type dispenseRepoPG struct{ pool *pgxpool.Pool }

func NewDispenseRepoPG(pool *pgxpool.Pool) DispenseRepository { return &dispenseRepoPG{pool: pool} }

func (r *dispenseRepoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *dispenseRepoPG) Create(ctx context.Context, d *Dispense) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dispense (id, prescription_id, pharmacist_id, status)
		VALUES ($1,$2,$3,$4)`,
		d.ID, d.PrescriptionID, d.PharmacistID, d.Status)
	return err
}

func (r *dispenseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dispense, error) {
	var d Dispense
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, prescription_id, pharmacist_id, status, dispensed_at, created_at
		FROM dispense WHERE id = $1`, id).
		Scan(&d.ID, &d.PrescriptionID, &d.PharmacistID, &d.Status, &d.DispensedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, dispense_id, prescription_item_id, stock_item_id, drug_id, quantity, unit_price
		FROM dispense_item WHERE dispense_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it DispenseItem
		if err := rows.Scan(&it.ID, &it.DispenseID, &it.PrescriptionItemID, &it.StockItemID, &it.DrugID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		d.Items = append(d.Items, &it)
	}
	return &d, rows.Err()
}

func (r *dispenseRepoPG) AddItem(ctx context.Context, item *DispenseItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dispense_item (id, dispense_id, prescription_item_id, stock_item_id, drug_id, quantity, unit_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.DispenseID, item.PrescriptionItemID, item.StockItemID, item.DrugID, item.Quantity, item.UnitPrice)
	return err
}

func (r *dispenseRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status DispenseStatus) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE dispense SET status = $2, dispensed_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *dispenseRepoPG) SumDispensed(ctx context.Context, prescriptionID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT di.prescription_item_id, COALESCE(SUM(di.quantity), 0)
		FROM dispense_item di
		JOIN dispense d ON d.id = di.dispense_id
		WHERE d.prescription_id = $1
		GROUP BY di.prescription_item_id`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[uuid.UUID]int)
	for rows.Next() {
		var itemID uuid.UUID
		var sum int
		if err := rows.Scan(&itemID, &sum); err != nil {
			return nil, err
		}
		totals[itemID] = sum
	}
	return totals, rows.Err()
}
