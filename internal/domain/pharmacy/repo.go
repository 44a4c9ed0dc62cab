package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type DrugRepository interface {
	Create(ctx context.Context, d *Drug) error
	GetByID(ctx context.Context, id uuid.UUID) (*Drug, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Drug, error)
	Search(ctx context.Context, query string, activeOnly bool, limit, offset int) ([]*Drug, int, error)
}

type StockRepository interface {
	Create(ctx context.Context, item *StockItem) error
	// BatchesForAllocation returns batches with qty_on_hand > 0 for the
	// drug/location, ordered by expiry ascending nulls-last, then by
	// creation time.
	BatchesForAllocation(ctx context.Context, drugID uuid.UUID, location string) ([]*StockItem, error)
	// Decrement subtracts qty from the batch only when enough remains,
	// as one atomic read-modify-write. It reports false when the guard
	// fails, leaving the row untouched.
	Decrement(ctx context.Context, stockItemID uuid.UUID, qty int) (bool, error)
	ListByDrug(ctx context.Context, drugID uuid.UUID) ([]*StockItem, error)
}

type PrescriptionRepository interface {
	// Create persists the prescription and its items.
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByStatus(ctx context.Context, statuses []PrescriptionStatus, limit, offset int) ([]*Prescription, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status PrescriptionStatus) error
}

type DispenseRepository interface {
	Create(ctx context.Context, d *Dispense) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dispense, error)
	AddItem(ctx context.Context, item *DispenseItem) error
	// SetStatus stamps the dispense's final status and dispensedAt.
	SetStatus(ctx context.Context, id uuid.UUID, status DispenseStatus) error
	// SumDispensed returns cumulative dispensed quantity per prescription
	// item across every dispense ever recorded for the prescription.
	SumDispensed(ctx context.Context, prescriptionID uuid.UUID) (map[uuid.UUID]int, error)
}

// AllergySource is the patient allergy collaborator. The registry service
// satisfies it; lookups may fail and the screener degrades to no hits.
type AllergySource interface {
	AllergySubstances(ctx context.Context, patientID uuid.UUID) ([]string, error)
}

// VisitDirectory resolves the parties of a visit for prescription creation.
type VisitDirectory interface {
	VisitParties(ctx context.Context, visitID uuid.UUID) (patientID, doctorID uuid.UUID, err error)
}

// TxRunner executes fn within a storage transaction; repositories invoked
// with the derived context join it.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error
