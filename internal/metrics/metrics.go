package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
type BookingMetrics struct {
	bookingsTotal       *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	dispatchFailures    *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome and rejection code",
		}, []string{"result", "code"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Lifecycle actions by outcome and rejection code",
		}, []string{"action", "result", "code"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be published",
		}, []string{"sink"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "availability_seconds",
			Help:      "Latency of availability computations",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.dispatchFailures, m.availabilityLatency)
	return m
}

// ObserveBooking records a booking attempt; an empty code means it succeeded.
func (m *BookingMetrics) ObserveBooking(code string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result(code), code).Inc()
}

// ObserveTransition records a lifecycle action; an empty code means it succeeded.
func (m *BookingMetrics) ObserveTransition(action, code string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, result(code), code).Inc()
}

func (m *BookingMetrics) ObserveDispatchFailure(sink string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(sink).Inc()
}

func (m *BookingMetrics) ObserveAvailability(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}

func result(code string) string {
	if code == "" {
		return "ok"
	}
	return "rejected"
}
