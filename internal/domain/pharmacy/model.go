// Package pharmacy implements the drug catalog, batch stock, prescriptions,
// and the dispense transaction with FEFO allocation and allergy screening.
package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// Drug is a formulary catalog entry. The dispense core reads it for
// allergy name-matching; formulary management owns writes.
type Drug struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	GenericName  *string   `db:"generic_name" json:"generic_name,omitempty"`
	Form         string    `db:"form" json:"form"`
	Strength     string    `db:"strength" json:"strength"`
	RouteDefault *string   `db:"route_default" json:"route_default,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Descriptor is the human-readable form used for allergy matching.
func (d *Drug) Descriptor() string {
	s := d.Name
	if d.Strength != "" {
		s += " " + d.Strength
	}
	return s
}

// StockItem is one received batch of a drug at a location. QtyOnHand never
// goes below zero; only dispense completion decrements it.
type StockItem struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	DrugID     uuid.UUID  `db:"drug_id" json:"drug_id"`
	BatchNo    *string    `db:"batch_no" json:"batch_no,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Location   string     `db:"location" json:"location"`
	QtyOnHand  int        `db:"qty_on_hand" json:"qty_on_hand"`
	UnitCost   *float64   `db:"unit_cost" json:"unit_cost,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// PrescriptionStatus is the aggregate fulfillment state, recomputed from
// cumulative dispensed quantities on every dispense completion.
type PrescriptionStatus string

const (
	RxPending   PrescriptionStatus = "PENDING"
	RxPartial   PrescriptionStatus = "PARTIAL"
	RxDispensed PrescriptionStatus = "DISPENSED"
)

// ValidPrescriptionStatus reports whether s names a known status.
func ValidPrescriptionStatus(s PrescriptionStatus) bool {
	switch s {
	case RxPending, RxPartial, RxDispensed:
		return true
	}
	return false
}

type Prescription struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	VisitID   uuid.UUID           `db:"visit_id" json:"visit_id"`
	DoctorID  uuid.UUID           `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID           `db:"patient_id" json:"patient_id"`
	Notes     *string             `db:"notes" json:"notes,omitempty"`
	Status    PrescriptionStatus  `db:"status" json:"status"`
	Items     []*PrescriptionItem `json:"items"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
}

// PrescriptionItem is immutable after creation.
type PrescriptionItem struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PrescriptionID     uuid.UUID `db:"prescription_id" json:"prescription_id"`
	DrugID             uuid.UUID `db:"drug_id" json:"drug_id"`
	Dose               string    `db:"dose" json:"dose"`
	Route              string    `db:"route" json:"route"`
	Frequency          string    `db:"frequency" json:"frequency"`
	DurationDays       int       `db:"duration_days" json:"duration_days"`
	QuantityPrescribed int       `db:"quantity_prescribed" json:"quantity_prescribed"`
	PRN                bool      `db:"prn" json:"prn"`
	AllowGeneric       bool      `db:"allow_generic" json:"allow_generic"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
}

// DispenseStatus is the state of one dispensing act.
type DispenseStatus string

const (
	DispenseReady     DispenseStatus = "READY"
	DispensePartial   DispenseStatus = "PARTIAL"
	DispenseCompleted DispenseStatus = "COMPLETED"
)

// Dispense is one act of handing out medication against a prescription. A
// prescription may accumulate several over time.
type Dispense struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PrescriptionID uuid.UUID       `db:"prescription_id" json:"prescription_id"`
	PharmacistID   uuid.UUID       `db:"pharmacist_id" json:"pharmacist_id"`
	Status         DispenseStatus  `db:"status" json:"status"`
	DispensedAt    *time.Time      `db:"dispensed_at" json:"dispensed_at,omitempty"`
	Items          []*DispenseItem `json:"items,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type DispenseItem struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	DispenseID         uuid.UUID  `db:"dispense_id" json:"dispense_id"`
	PrescriptionItemID uuid.UUID  `db:"prescription_item_id" json:"prescription_item_id"`
	StockItemID        *uuid.UUID `db:"stock_item_id" json:"stock_item_id,omitempty"`
	DrugID             uuid.UUID  `db:"drug_id" json:"drug_id"`
	Quantity           int        `db:"quantity" json:"quantity"`
	UnitPrice          *float64   `db:"unit_price" json:"unit_price,omitempty"`
}

// StockPick is one batch assignment in an allocation plan.
type StockPick struct {
	StockItemID uuid.UUID `json:"stockItemId"`
	Quantity    int       `json:"qty"`
}

// AllocationPlan is the FEFO allocator output. Remaining is the unmet
// quantity, zero when fully satisfied. The plan does not mutate stock.
type AllocationPlan struct {
	Picks     []StockPick `json:"picks"`
	Remaining int         `json:"remaining"`
}

// allocateFEFO greedily assigns the needed quantity from batches, which the
// caller supplies already ordered soonest-to-expire first.
func allocateFEFO(batches []*StockItem, needed int) AllocationPlan {
	plan := AllocationPlan{Picks: []StockPick{}, Remaining: needed}
	for _, batch := range batches {
		if plan.Remaining <= 0 {
			break
		}
		take := batch.QtyOnHand
		if take > plan.Remaining {
			take = plan.Remaining
		}
		if take > 0 {
			plan.Picks = append(plan.Picks, StockPick{StockItemID: batch.ID, Quantity: take})
			plan.Remaining -= take
		}
	}
	return plan
}
