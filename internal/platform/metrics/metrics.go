// Package metrics provides Prometheus metrics for the scheduling and
// pharmacy engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application counters.
type Metrics struct {
	AppointmentsBooked    prometheus.Counter
	AdmissionRejected     *prometheus.CounterVec
	AppointmentsCompleted prometheus.Counter
	PrescriptionsCreated  prometheus.Counter
	AllergyHits           prometheus.Counter
	DispensesCompleted    prometheus.Counter
	StockRaces            prometheus.Counter
}

// New creates and registers all metrics on reg. Passing a fresh registry in
// tests avoids duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AppointmentsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Appointments admitted and persisted",
		}),
		AdmissionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointment_admission_rejected_total",
			Help: "Appointment requests rejected by admission control",
		}, []string{"reason"}),
		AppointmentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_completed_total",
			Help: "Appointments transitioned to Completed",
		}),
		PrescriptionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prescriptions_created_total",
			Help: "Prescriptions created",
		}),
		AllergyHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "allergy_screen_hits_total",
			Help: "Advisory allergy hits surfaced at prescription creation",
		}),
		DispensesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispenses_completed_total",
			Help: "Dispense transactions committed",
		}),
		StockRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispense_stock_races_total",
			Help: "Dispense transactions aborted by a stock decrement race",
		}),
	}

	reg.MustRegister(
		m.AppointmentsBooked,
		m.AdmissionRejected,
		m.AppointmentsCompleted,
		m.PrescriptionsCreated,
		m.AllergyHits,
		m.DispensesCompleted,
		m.StockRaces,
	)

	return m
}

// Nop returns metrics backed by a throwaway registry, for tests and tools
// that do not scrape.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
