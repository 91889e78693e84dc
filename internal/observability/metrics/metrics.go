package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	submissionsTotal    *prometheus.CounterVec
	submitLatency       *prometheus.HistogramVec
	submitRetries       prometheus.Counter
	availabilityLookups *prometheus.CounterVec
	outcomesTotal       *prometheus.CounterVec
	chargedCents        *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radiance",
			Subsystem: "wizard",
			Name:      "submissions_total",
			Help:      "Booking submissions sent by wizards, by outcome",
		}, []string{"outcome"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "radiance",
			Subsystem: "wizard",
			Name:      "submit_latency_seconds",
			Help:      "Latency of booking submissions including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		submitRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radiance",
			Subsystem: "wizard",
			Name:      "submit_retries_total",
			Help:      "Retries of booking submissions after network failures",
		}),
		availabilityLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radiance",
			Subsystem: "availability",
			Name:      "lookups_total",
			Help:      "Availability lookups by status",
		}, []string{"status"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radiance",
			Subsystem: "bookings",
			Name:      "outcomes_total",
			Help:      "Server side booking requests by variant and outcome",
		}, []string{"variant", "outcome"}),
		chargedCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radiance",
			Subsystem: "bookings",
			Name:      "charged_cents_total",
			Help:      "Amount captured at booking time in minor units",
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.submissionsTotal,
		m.submitLatency,
		m.submitRetries,
		m.availabilityLookups,
		m.outcomesTotal,
		m.chargedCents,
	)
	return m
}

// ObserveSubmission implements booking.Observer.
func (m *BookingMetrics) ObserveSubmission(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.submitLatency.WithLabelValues(outcome).Observe(seconds)
	}
}

func (m *BookingMetrics) ObserveSubmitRetry() {
	if m == nil {
		return
	}
	m.submitRetries.Inc()
}

// ObserveAvailabilityLookup implements availability.Observer.
func (m *BookingMetrics) ObserveAvailabilityLookup(status string) {
	if m == nil {
		return
	}
	m.availabilityLookups.WithLabelValues(status).Inc()
}

// ObserveBookingOutcome implements bookings.Observer.
func (m *BookingMetrics) ObserveBookingOutcome(variant, outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(variant, outcome).Inc()
}

func (m *BookingMetrics) ObserveCharge(provider string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.chargedCents.WithLabelValues(provider).Add(float64(amount))
}
