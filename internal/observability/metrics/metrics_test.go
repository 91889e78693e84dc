package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveSubmission("confirmed", 0.25)
	m.ObserveSubmission("confirmed", 0.5)
	m.ObserveSubmission("validation", 0)
	m.ObserveSubmitRetry()
	m.ObserveAvailabilityLookup("loaded")
	m.ObserveBookingOutcome("public", "confirmed")
	m.ObserveCharge("stripe", 11000)
	m.ObserveCharge("stripe", 0)

	if got := testutil.ToFloat64(m.submissionsTotal.WithLabelValues("confirmed")); got != 2 {
		t.Fatalf("confirmed submissions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.submitRetries); got != 1 {
		t.Fatalf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.outcomesTotal.WithLabelValues("public", "confirmed")); got != 1 {
		t.Fatalf("outcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.chargedCents.WithLabelValues("stripe")); got != 11000 {
		t.Fatalf("charged = %v, want 11000", got)
	}
	if got := testutil.CollectAndCount(m.submitLatency); got != 1 {
		t.Fatalf("latency series = %d, want 1", got)
	}
}

func TestSubmitLatencySkipsZeroDurations(t *testing.T) {
	m := NewBookingMetrics(prometheus.NewRegistry())
	m.ObserveSubmission("declined", 1.5)
	m.ObserveSubmission("declined", 0)

	hist, ok := m.submitLatency.WithLabelValues("declined").(prometheus.Metric)
	if !ok {
		t.Fatal("latency observer is not a metric")
	}
	var out dto.Metric
	if err := hist.Write(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := out.GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("latency samples = %d, want 1", got)
	}
	if got := out.GetHistogram().GetSampleSum(); got != 1.5 {
		t.Fatalf("latency sum = %v, want 1.5", got)
	}
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	m := NewBookingMetrics(nil)
	t.Cleanup(func() {
		prometheus.DefaultRegisterer.Unregister(m.submissionsTotal)
		prometheus.DefaultRegisterer.Unregister(m.submitLatency)
		prometheus.DefaultRegisterer.Unregister(m.submitRetries)
		prometheus.DefaultRegisterer.Unregister(m.availabilityLookups)
		prometheus.DefaultRegisterer.Unregister(m.outcomesTotal)
		prometheus.DefaultRegisterer.Unregister(m.chargedCents)
	})
	m.ObserveAvailabilityLookup("error")
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveSubmission("network", 1)
	m.ObserveSubmitRetry()
	m.ObserveAvailabilityLookup("loaded")
	m.ObserveBookingOutcome("walkin", "declined")
	m.ObserveCharge("fake", 100)
}
