package pharmacy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/metrics"
)

type Service struct {
	drugs         DrugRepository
	stock         StockRepository
	prescriptions PrescriptionRepository
	dispenses     DispenseRepository
	visits        VisitDirectory
	screener      *Screener
	inTx          TxRunner
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

func NewService(
	drugs DrugRepository,
	stock StockRepository,
	prescriptions PrescriptionRepository,
	dispenses DispenseRepository,
	visits VisitDirectory,
	screener *Screener,
	inTx TxRunner,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		drugs:         drugs,
		stock:         stock,
		prescriptions: prescriptions,
		dispenses:     dispenses,
		visits:        visits,
		screener:      screener,
		inTx:          inTx,
		metrics:       m,
		logger:        logger,
	}
}

// -- Drug catalog --

func (s *Service) CreateDrug(ctx context.Context, d *Drug) error {
	if strings.TrimSpace(d.Name) == "" {
		return httperr.BadRequest("drug name is required")
	}
	if strings.TrimSpace(d.Form) == "" || strings.TrimSpace(d.Strength) == "" {
		return httperr.BadRequest("drug form and strength are required")
	}
	return s.drugs.Create(ctx, d)
}

func (s *Service) GetDrug(ctx context.Context, id uuid.UUID) (*Drug, error) {
	d, err := s.drugs.GetByID(ctx, id)
	if err != nil {
		return nil, httperr.NotFound("Drug not found")
	}
	return d, nil
}

func (s *Service) SearchDrugs(ctx context.Context, query string, activeOnly bool, limit, offset int) ([]*Drug, int, error) {
	return s.drugs.Search(ctx, query, activeOnly, limit, offset)
}

// -- Stock receipt --

// ReceiveStock creates batches in one transaction.
func (s *Service) ReceiveStock(ctx context.Context, items []*StockItem) error {
	if len(items) == 0 {
		return httperr.BadRequest("at least one stock item is required")
	}
	for _, item := range items {
		if item.QtyOnHand <= 0 {
			return httperr.BadRequest("qtyOnHand must be positive")
		}
		if strings.TrimSpace(item.Location) == "" {
			return httperr.BadRequest("location is required")
		}
		if _, err := s.drugs.GetByID(ctx, item.DrugID); err != nil {
			return httperr.NotFound("Drug not found")
		}
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		for _, item := range items {
			if err := s.stock.Create(ctx, item); err != nil {
				return fmt.Errorf("create stock item: %w", err)
			}
		}
		return nil
	})
}

func (s *Service) ListStock(ctx context.Context, drugID uuid.UUID) ([]*StockItem, error) {
	return s.stock.ListByDrug(ctx, drugID)
}

// -- FEFO allocation --

// AllocatePlan computes a FEFO allocation plan for a drug at a location.
// It never mutates stock; committing happens only inside CompleteDispense
// so plan and commit cannot race each other.
func (s *Service) AllocatePlan(ctx context.Context, drugID uuid.UUID, location string, qty int) (*AllocationPlan, error) {
	if qty <= 0 {
		return nil, httperr.BadRequest("quantity must be positive")
	}
	batches, err := s.stock.BatchesForAllocation(ctx, drugID, location)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	plan := allocateFEFO(batches, qty)
	return &plan, nil
}

// -- Prescriptions --

// PrescriptionItemInput is one ordered line of a new prescription.
type PrescriptionItemInput struct {
	DrugID             uuid.UUID `json:"drugId"`
	Dose               string    `json:"dose"`
	Route              string    `json:"route"`
	Frequency          string    `json:"frequency"`
	DurationDays       int       `json:"durationDays"`
	QuantityPrescribed int       `json:"quantityPrescribed"`
	PRN                bool      `json:"prn"`
	AllowGeneric       *bool     `json:"allowGeneric"`
	Notes              *string   `json:"notes"`
}

// CreatePrescriptionInput is the prescription order for a visit.
type CreatePrescriptionInput struct {
	PatientID *uuid.UUID              `json:"patientId"`
	Notes     *string                 `json:"notes"`
	Items     []PrescriptionItemInput `json:"items"`
}

// PrescriptionResult pairs the created prescription with the advisory
// allergy hits surfaced to the prescriber.
type PrescriptionResult struct {
	Prescription *Prescription `json:"prescription"`
	AllergyHits  []string      `json:"allergyHits"`
}

// CreatePrescription validates the visit, screens for allergies, and
// persists the prescription with its items in status PENDING. Allergy hits
// warn but never block. actorDoctorID, when set, must match the visit's
// doctor.
func (s *Service) CreatePrescription(ctx context.Context, visitID uuid.UUID, actorDoctorID *uuid.UUID, in CreatePrescriptionInput) (*PrescriptionResult, error) {
	if len(in.Items) == 0 {
		return nil, httperr.BadRequest("at least one prescription item is required")
	}
	for _, item := range in.Items {
		if item.QuantityPrescribed <= 0 {
			return nil, httperr.BadRequest("quantityPrescribed must be positive")
		}
	}

	visitPatient, visitDoctor, err := s.visits.VisitParties(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if actorDoctorID != nil && *actorDoctorID != visitDoctor {
		return nil, httperr.Forbidden("Forbidden")
	}

	patientID := visitPatient
	if in.PatientID != nil {
		patientID = *in.PatientID
	}

	drugIDs := make([]uuid.UUID, 0, len(in.Items))
	for _, item := range in.Items {
		drugIDs = append(drugIDs, item.DrugID)
	}
	drugs, err := s.drugs.ListByIDs(ctx, drugIDs)
	if err != nil {
		return nil, fmt.Errorf("load drugs: %w", err)
	}
	drugNames := make([]string, 0, len(drugs))
	for _, d := range drugs {
		drugNames = append(drugNames, d.Descriptor())
	}

	allergyHits := s.screener.Screen(ctx, patientID, drugNames)
	if len(allergyHits) > 0 {
		s.metrics.AllergyHits.Add(float64(len(allergyHits)))
		s.logger.Warn().
			Str("patient_id", patientID.String()).
			Strs("hits", allergyHits).
			Msg("allergy hits on prescription")
	}

	p := &Prescription{
		VisitID:   visitID,
		DoctorID:  visitDoctor,
		PatientID: patientID,
		Notes:     in.Notes,
		Status:    RxPending,
	}
	for _, item := range in.Items {
		allowGeneric := true
		if item.AllowGeneric != nil {
			allowGeneric = *item.AllowGeneric
		}
		p.Items = append(p.Items, &PrescriptionItem{
			DrugID:             item.DrugID,
			Dose:               item.Dose,
			Route:              item.Route,
			Frequency:          item.Frequency,
			DurationDays:       item.DurationDays,
			QuantityPrescribed: item.QuantityPrescribed,
			PRN:                item.PRN,
			AllowGeneric:       allowGeneric,
			Notes:              item.Notes,
		})
	}

	// Header and item inserts commit together or not at all.
	err = s.inTx(ctx, func(txCtx context.Context) error {
		return s.prescriptions.Create(txCtx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	s.metrics.PrescriptionsCreated.Inc()

	return &PrescriptionResult{Prescription: p, AllergyHits: allergyHits}, nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, httperr.NotFound("Prescription not found")
	}
	return p, nil
}

// PharmacyQueue lists prescriptions by status for the pharmacist work
// queue; unknown status strings are dropped and an empty filter defaults
// to PENDING.
func (s *Service) PharmacyQueue(ctx context.Context, rawStatuses []string, limit, offset int) ([]*Prescription, int, error) {
	var statuses []PrescriptionStatus
	for _, raw := range rawStatuses {
		st := PrescriptionStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if ValidPrescriptionStatus(st) {
			statuses = append(statuses, st)
		}
	}
	if len(statuses) == 0 {
		statuses = []PrescriptionStatus{RxPending}
	}
	return s.prescriptions.ListByStatus(ctx, statuses, limit, offset)
}

// -- Dispense transaction --

// StartDispense opens a READY dispense attributed to a pharmacist.
func (s *Service) StartDispense(ctx context.Context, prescriptionID, pharmacistID uuid.UUID) (*Dispense, error) {
	if _, err := s.prescriptions.GetByID(ctx, prescriptionID); err != nil {
		return nil, httperr.NotFound("Prescription not found")
	}
	d := &Dispense{
		PrescriptionID: prescriptionID,
		PharmacistID:   pharmacistID,
		Status:         DispenseReady,
	}
	if err := s.dispenses.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create dispense: %w", err)
	}
	return d, nil
}

// DispenseItemInput is one recorded line against an open dispense.
type DispenseItemInput struct {
	PrescriptionItemID uuid.UUID  `json:"prescriptionItemId"`
	StockItemID        *uuid.UUID `json:"stockItemId"`
	DrugID             uuid.UUID  `json:"drugId"`
	Quantity           int        `json:"quantity"`
	UnitPrice          *float64   `json:"unitPrice"`
}

// AddDispenseItem records a line. No stock moves until completion.
func (s *Service) AddDispenseItem(ctx context.Context, dispenseID uuid.UUID, in DispenseItemInput) (*DispenseItem, error) {
	if in.Quantity <= 0 {
		return nil, httperr.BadRequest("quantity must be positive")
	}
	d, err := s.dispenses.GetByID(ctx, dispenseID)
	if err != nil {
		return nil, httperr.NotFound("Dispense not found")
	}
	if d.Status == DispenseCompleted {
		return nil, httperr.InvalidTransition("dispense is already completed")
	}

	item := &DispenseItem{
		DispenseID:         dispenseID,
		PrescriptionItemID: in.PrescriptionItemID,
		StockItemID:        in.StockItemID,
		DrugID:             in.DrugID,
		Quantity:           in.Quantity,
		UnitPrice:          in.UnitPrice,
	}
	if err := s.dispenses.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add dispense item: %w", err)
	}
	return item, nil
}

// CompleteResult reports the recomputed prescription status after a
// dispense completion commits.
type CompleteResult struct {
	OK                 bool               `json:"ok"`
	PrescriptionStatus PrescriptionStatus `json:"prescriptionStatus"`
}

// CompleteDispense commits a dispense as COMPLETED or PARTIAL in one
// transaction: every stock-backed line decrements its batch through a
// conditional update, the dispense is stamped, and the prescription status
// is recomputed from cumulative dispensed sums. Any failed decrement rolls
// the whole transaction back and surfaces a retryable Conflict.
func (s *Service) CompleteDispense(ctx context.Context, dispenseID uuid.UUID, status DispenseStatus) (*CompleteResult, error) {
	if status != DispenseCompleted && status != DispensePartial {
		return nil, httperr.BadRequest("status must be COMPLETED or PARTIAL")
	}

	var result CompleteResult

	err := s.inTx(ctx, func(ctx context.Context) error {
		d, err := s.dispenses.GetByID(ctx, dispenseID)
		if err != nil {
			return httperr.NotFound("Dispense not found")
		}
		if d.Status == DispenseCompleted {
			return httperr.InvalidTransition("dispense is already completed")
		}
		rx, err := s.prescriptions.GetByID(ctx, d.PrescriptionID)
		if err != nil {
			return httperr.NotFound("Prescription not found")
		}

		for _, item := range d.Items {
			if item.StockItemID == nil {
				continue
			}
			ok, err := s.stock.Decrement(ctx, *item.StockItemID, item.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			if !ok {
				s.metrics.StockRaces.Inc()
				s.logger.Warn().
					Str("dispense_id", dispenseID.String()).
					Str("stock_item_id", item.StockItemID.String()).
					Int("quantity", item.Quantity).
					Msg("stock decrement lost race, rolling back dispense")
				return httperr.Conflict("Insufficient stock to complete dispense")
			}
		}

		if err := s.dispenses.SetStatus(ctx, dispenseID, status); err != nil {
			return fmt.Errorf("update dispense: %w", err)
		}

		totals, err := s.dispenses.SumDispensed(ctx, d.PrescriptionID)
		if err != nil {
			return fmt.Errorf("sum dispensed: %w", err)
		}
		allMet := true
		for _, rxItem := range rx.Items {
			if totals[rxItem.ID] < rxItem.QuantityPrescribed {
				allMet = false
				break
			}
		}
		finalStatus := RxPartial
		if allMet {
			finalStatus = RxDispensed
		}
		if err := s.prescriptions.UpdateStatus(ctx, d.PrescriptionID, finalStatus); err != nil {
			return fmt.Errorf("update prescription: %w", err)
		}

		result = CompleteResult{OK: true, PrescriptionStatus: finalStatus}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DispensesCompleted.Inc()
	return &result, nil
}
