package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/metrics"
	"github.com/macmann/Thu-Kha-EMR/pkg/timeutil"
)

type Service struct {
	availability AvailabilityRepository
	blackouts    BlackoutRepository
	appointments AppointmentRepository
	directory    Directory
	visits       VisitCreator
	inTx         TxRunner
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewService(
	avail AvailabilityRepository,
	blackouts BlackoutRepository,
	appts AppointmentRepository,
	directory Directory,
	visits VisitCreator,
	inTx TxRunner,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		availability: avail,
		blackouts:    blackouts,
		appointments: appts,
		directory:    directory,
		visits:       visits,
		inTx:         inTx,
		metrics:      m,
		logger:       logger,
	}
}

// -- Availability configuration --

// ReplaceAvailability swaps a doctor's weekly recurring windows.
func (s *Service) ReplaceAvailability(ctx context.Context, doctorID uuid.UUID, windows []*AvailabilityWindow) error {
	exists, err := s.directory.DoctorExists(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		return httperr.NotFound("Doctor not found")
	}
	for _, w := range windows {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return httperr.BadRequest(fmt.Sprintf("day_of_week %d out of range", w.DayOfWeek))
		}
		if w.StartMin < 0 || w.EndMin > 24*60 || w.StartMin >= w.EndMin {
			return httperr.BadRequest(fmt.Sprintf("invalid window %d-%d", w.StartMin, w.EndMin))
		}
		w.DoctorID = doctorID
	}
	// Delete-then-insert must not leave a doctor half-scheduled.
	return s.inTx(ctx, func(txCtx context.Context) error {
		return s.availability.ReplaceForDoctor(txCtx, doctorID, windows)
	})
}

func (s *Service) ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	return s.availability.ListByDoctor(ctx, doctorID)
}

// CreateBlackout records an absolute unavailability range for a doctor.
func (s *Service) CreateBlackout(ctx context.Context, b *Blackout) error {
	exists, err := s.directory.DoctorExists(ctx, b.DoctorID)
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		return httperr.NotFound("Doctor not found")
	}
	if !b.StartAt.Before(b.EndAt) {
		return httperr.BadRequest("blackout start must precede end")
	}
	return s.blackouts.Create(ctx, b)
}

func (s *Service) ListBlackouts(ctx context.Context, doctorID uuid.UUID) ([]*Blackout, error) {
	return s.blackouts.ListByDoctor(ctx, doctorID)
}

// -- Availability resolver --

// AvailabilityForDate returns the doctor's open windows for a calendar
// date, resolved from the weekly schedule via the date's UTC weekday.
func (s *Service) AvailabilityForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Window, error) {
	return s.availability.WindowsForDay(ctx, doctorID, timeutil.DayOfWeekUTC(date))
}

// hasBlackout reports whether any blackout intersects the candidate window
// expressed as absolute instants on the given date.
func (s *Service) hasBlackout(ctx context.Context, doctorID uuid.UUID, date time.Time, startMin, endMin int) (bool, error) {
	startAt := timeutil.ComposeDateTime(date, startMin)
	endAt := timeutil.ComposeDateTime(date, endMin)
	return s.blackouts.HasOverlap(ctx, doctorID, startAt, endAt)
}

// -- Admission control --

// CreateAppointmentInput is the admission request for a new appointment.
type CreateAppointmentInput struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	Department   string
	Date         time.Time
	StartTimeMin int
	EndTimeMin   int
	Reason       *string
	Location     *string
}

// UpdateAppointmentInput carries a reschedule request; nil fields default
// to the appointment's current values.
type UpdateAppointmentInput struct {
	PatientID    *uuid.UUID
	DoctorID     *uuid.UUID
	Date         *time.Time
	StartTimeMin *int
	EndTimeMin   *int
	Reason       *string
	Location     *string
}

// admit runs the five admission checks, short-circuiting on the first
// failure. Callers must already hold the doctor-day lock when admitting
// inside a write transaction.
func (s *Service) admit(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, startMin, endMin int, excludeID *uuid.UUID) error {
	patientOK, err := s.directory.PatientExists(ctx, patientID)
	if err != nil {
		return fmt.Errorf("check patient: %w", err)
	}
	if !patientOK {
		return httperr.NotFound("Patient not found")
	}

	doctorOK, err := s.directory.DoctorExists(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if !doctorOK {
		return httperr.NotFound("Doctor not found")
	}

	windows, err := s.AvailabilityForDate(ctx, doctorID, date)
	if err != nil {
		return fmt.Errorf("load availability: %w", err)
	}
	requested := Window{StartMin: startMin, EndMin: endMin}
	fits := false
	for _, w := range windows {
		if w.Contains(requested) {
			fits = true
			break
		}
	}
	if !fits {
		s.metrics.AdmissionRejected.WithLabelValues("outside_availability").Inc()
		return httperr.Unprocessable("Requested time is outside doctor availability")
	}

	blocked, err := s.hasBlackout(ctx, doctorID, date, startMin, endMin)
	if err != nil {
		return fmt.Errorf("check blackout: %w", err)
	}
	if blocked {
		s.metrics.AdmissionRejected.WithLabelValues("blackout").Inc()
		return httperr.Unprocessable("Doctor is unavailable due to blackout")
	}

	overlap, err := s.appointments.HasOverlap(ctx, doctorID, date, startMin, endMin, excludeID)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if overlap {
		s.metrics.AdmissionRejected.WithLabelValues("overlap").Inc()
		return httperr.Conflict("Appointment overlaps with an existing appointment")
	}

	return nil
}

func validateInterval(startMin, endMin int) error {
	if startMin < 0 || endMin > 24*60 || startMin >= endMin {
		return httperr.BadRequest(fmt.Sprintf("invalid interval %d-%d", startMin, endMin))
	}
	return nil
}

// CreateAppointment admits and persists a new appointment. The overlap
// re-check and insert run inside one transaction holding the doctor-day
// lock, so two concurrent overlapping requests admit at most one winner.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	if err := validateInterval(in.StartTimeMin, in.EndTimeMin); err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID:    in.PatientID,
		DoctorID:     in.DoctorID,
		Department:   in.Department,
		Date:         in.Date,
		StartTimeMin: in.StartTimeMin,
		EndTimeMin:   in.EndTimeMin,
		Status:       StatusScheduled,
		Reason:       in.Reason,
		Location:     in.Location,
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.LockDoctorDay(ctx, in.DoctorID, in.Date); err != nil {
			return err
		}
		if err := s.admit(ctx, in.PatientID, in.DoctorID, in.Date, in.StartTimeMin, in.EndTimeMin, nil); err != nil {
			return err
		}
		return s.appointments.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentsBooked.Inc()
	return appt, nil
}

// RescheduleAppointment re-admits an existing appointment with updated
// fields, excluding the appointment itself from the overlap check.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, in UpdateAppointmentInput) (*Appointment, error) {
	var updated *Appointment

	err := s.inTx(ctx, func(ctx context.Context) error {
		appt, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return httperr.NotFound("Appointment not found")
		}
		if appt.Status.IsTerminal() {
			return httperr.InvalidTransition(fmt.Sprintf("appointment is %s and cannot be rescheduled", appt.Status))
		}

		if in.PatientID != nil {
			appt.PatientID = *in.PatientID
		}
		if in.DoctorID != nil {
			appt.DoctorID = *in.DoctorID
		}
		if in.Date != nil {
			appt.Date = *in.Date
		}
		if in.StartTimeMin != nil {
			appt.StartTimeMin = *in.StartTimeMin
		}
		if in.EndTimeMin != nil {
			appt.EndTimeMin = *in.EndTimeMin
		}
		if in.Reason != nil {
			appt.Reason = in.Reason
		}
		if in.Location != nil {
			appt.Location = in.Location
		}

		if err := validateInterval(appt.StartTimeMin, appt.EndTimeMin); err != nil {
			return err
		}
		if err := s.appointments.LockDoctorDay(ctx, appt.DoctorID, appt.Date); err != nil {
			return err
		}
		if err := s.admit(ctx, appt.PatientID, appt.DoctorID, appt.Date, appt.StartTimeMin, appt.EndTimeMin, &appt.ID); err != nil {
			return err
		}
		if err := s.appointments.Update(ctx, appt); err != nil {
			return err
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// -- Status machine --

// StatusChange is the result of a status transition. VisitID is set only
// when the transition created a visit (Completed).
type StatusChange struct {
	Appointment *Appointment
	VisitID     *uuid.UUID
}

// UpdateStatus applies a status transition. Transition to Completed
// atomically creates the visit record copied from the appointment and
// returns its id; transition to Cancelled records cancelReason. Illegal
// transitions, including re-completing a Completed appointment, are
// rejected.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next AppointmentStatus, reason, cancelReason *string) (*StatusChange, error) {
	if !ValidStatus(next) {
		return nil, httperr.BadRequest(fmt.Sprintf("unknown status %q", next))
	}

	var change StatusChange

	err := s.inTx(ctx, func(ctx context.Context) error {
		appt, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return httperr.NotFound("Appointment not found")
		}
		if !CanTransition(appt.Status, next) {
			return httperr.InvalidTransition(fmt.Sprintf("cannot change status from %s to %s", appt.Status, next))
		}

		appt.Status = next
		if next == StatusCancelled {
			appt.CancelReason = cancelReason
		} else {
			appt.CancelReason = nil
		}

		if next == StatusCompleted {
			visitReason := reason
			if visitReason == nil {
				visitReason = appt.Reason
			}
			visitID, err := s.visits.CreateVisit(ctx, VisitData{
				AppointmentID: appt.ID,
				PatientID:     appt.PatientID,
				DoctorID:      appt.DoctorID,
				Department:    appt.Department,
				Date:          appt.Date,
				Reason:        visitReason,
			})
			if err != nil {
				return fmt.Errorf("create visit: %w", err)
			}
			appt.VisitID = &visitID
			change.VisitID = &visitID
		}

		if err := s.appointments.Update(ctx, appt); err != nil {
			return err
		}
		change.Appointment = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if next == StatusCompleted {
		s.metrics.AppointmentsCompleted.Inc()
		s.logger.Info().
			Str("appointment_id", change.Appointment.ID.String()).
			Str("visit_id", change.VisitID.String()).
			Msg("appointment completed, visit created")
	}
	return &change, nil
}

// -- Queries --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, httperr.NotFound("Appointment not found")
	}
	return appt, nil
}

func (s *Service) SearchAppointments(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.Search(ctx, params, limit, offset)
}

// DayAvailabilityFor derives the free and blocked intervals for a
// doctor/date: weekly windows minus blackouts minus booked appointments.
func (s *Service) DayAvailabilityFor(ctx context.Context, doctorID uuid.UUID, date time.Time) (*DayAvailability, error) {
	windows, err := s.AvailabilityForDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	appts, err := s.appointments.ListActiveByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	blackouts, err := s.blackouts.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}

	var blocked []Window
	for _, a := range appts {
		blocked = append(blocked, a.Slot())
	}
	dayStart := date
	dayEnd := date.Add(24 * time.Hour)
	for _, b := range blackouts {
		if !b.StartAt.Before(dayEnd) || !b.EndAt.After(dayStart) {
			continue
		}
		w := Window{StartMin: 0, EndMin: 24 * 60}
		if b.StartAt.After(dayStart) {
			w.StartMin = int(b.StartAt.Sub(dayStart) / time.Minute)
		}
		if b.EndAt.Before(dayEnd) {
			w.EndMin = int(b.EndAt.Sub(dayStart) / time.Minute)
		}
		blocked = append(blocked, w)
	}
	blocked = mergeWindows(blocked)

	free := subtractWindows(windows, blocked)
	return &DayAvailability{FreeSlots: free, Blocked: blocked}, nil
}

// mergeWindows sorts and coalesces overlapping or adjacent intervals.
func mergeWindows(windows []Window) []Window {
	if len(windows) == 0 {
		return []Window{}
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMin < sorted[j].StartMin })

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.StartMin <= last.EndMin {
			if w.EndMin > last.EndMin {
				last.EndMin = w.EndMin
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// subtractWindows removes blocked intervals from each open window,
// returning the remaining free fragments in order.
func subtractWindows(open, blocked []Window) []Window {
	free := []Window{}
	for _, w := range open {
		cursor := w.StartMin
		for _, b := range blocked {
			if b.EndMin <= cursor || b.StartMin >= w.EndMin {
				continue
			}
			if b.StartMin > cursor {
				free = append(free, Window{StartMin: cursor, EndMin: b.StartMin})
			}
			if b.EndMin > cursor {
				cursor = b.EndMin
			}
		}
		if cursor < w.EndMin {
			free = append(free, Window{StartMin: cursor, EndMin: w.EndMin})
		}
	}
	return free
}
