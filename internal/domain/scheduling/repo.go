package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AvailabilityRepository interface {
	// WindowsForDay returns the doctor's open windows for a weekday,
	// ascending by start minute.
	WindowsForDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) ([]Window, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error)
	// ReplaceForDoctor swaps the doctor's entire weekly schedule; windows
	// are immutable rows so edits are whole-set replacement.
	ReplaceForDoctor(ctx context.Context, doctorID uuid.UUID, windows []*AvailabilityWindow) error
}

type BlackoutRepository interface {
	Create(ctx context.Context, b *Blackout) error
	// HasOverlap reports whether any blackout intersects [startAt, endAt).
	HasOverlap(ctx context.Context, doctorID uuid.UUID, startAt, endAt time.Time) (bool, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Blackout, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// HasOverlap reports whether a non-Cancelled appointment for the
	// doctor/date overlaps [startMin, endMin), excluding excludeID if set.
	HasOverlap(ctx context.Context, doctorID uuid.UUID, date time.Time, startMin, endMin int, excludeID *uuid.UUID) (bool, error)
	// ListActiveByDoctorDate returns non-Cancelled appointments for the
	// doctor/date ascending by start minute.
	ListActiveByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	// LockDoctorDay serializes writers for one doctor's calendar day for
	// the remainder of the enclosing transaction.
	LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) error
}

// Directory is the patient/doctor existence lookup the admission checks
// consume. The registry service satisfies it.
type Directory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// VisitData carries the fields copied from an appointment into the visit
// record spawned on completion.
type VisitData struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	Department    string
	Date          time.Time
	Reason        *string
}

// VisitCreator persists the clinical visit created when an appointment
// completes. It runs inside the completion transaction.
type VisitCreator interface {
	CreateVisit(ctx context.Context, data VisitData) (uuid.UUID, error)
}

// TxRunner executes fn within a storage transaction; repositories invoked
// with the derived context join it.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error
