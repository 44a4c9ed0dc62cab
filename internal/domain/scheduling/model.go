// Package scheduling implements doctor availability, appointment admission
// control, and the appointment status machine.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "Scheduled"
	StatusCheckedIn  AppointmentStatus = "CheckedIn"
	StatusInProgress AppointmentStatus = "InProgress"
	StatusCompleted  AppointmentStatus = "Completed"
	StatusCancelled  AppointmentStatus = "Cancelled"
)

// legalTransitions is the full transition relation. Completed and Cancelled
// are terminal.
var legalTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled:  {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ValidStatus reports whether s names a known appointment status.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Window is a half-open [StartMin, EndMin) interval in minutes of day.
type Window struct {
	StartMin int `db:"start_min" json:"startMin"`
	EndMin   int `db:"end_min" json:"endMin"`
}

// Overlaps applies the half-open interval test.
func (w Window) Overlaps(other Window) bool {
	return w.StartMin < other.EndMin && w.EndMin > other.StartMin
}

// Contains reports whether other fits entirely inside w.
func (w Window) Contains(other Window) bool {
	return other.StartMin >= w.StartMin && other.EndMin <= w.EndMin
}

// AvailabilityWindow maps to the doctor_availability table: a recurring
// weekly open slot. Rows are immutable; edits replace a doctor's set.
type AvailabilityWindow struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartMin  int       `db:"start_min" json:"start_min"`
	EndMin    int       `db:"end_min" json:"end_min"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Blackout maps to the doctor_blackout table: an absolute unavailability
// range overriding the weekly schedule.
type Blackout struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Appointment maps to the appointment table. For a fixed doctor and date no
// two non-Cancelled rows may overlap on [StartTimeMin, EndTimeMin).
type Appointment struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Department   string            `db:"department" json:"department"`
	Date         time.Time         `db:"date" json:"date"`
	StartTimeMin int               `db:"start_time_min" json:"start_time_min"`
	EndTimeMin   int               `db:"end_time_min" json:"end_time_min"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Reason       *string           `db:"reason" json:"reason,omitempty"`
	Location     *string           `db:"location" json:"location,omitempty"`
	CancelReason *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	VisitID      *uuid.UUID        `db:"visit_id" json:"visit_id,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// Slot returns the appointment's minute interval.
func (a *Appointment) Slot() Window {
	return Window{StartMin: a.StartTimeMin, EndMin: a.EndTimeMin}
}

// DayAvailability is the free/blocked breakdown of a doctor's calendar day.
type DayAvailability struct {
	FreeSlots []Window `json:"freeSlots"`
	Blocked   []Window `json:"blocked"`
}
