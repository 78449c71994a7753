package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("")
	m.ObserveBooking("")
	m.ObserveBooking("SchedulingConflict")
	m.ObserveTransition("cancel", "InvalidTransition")
	m.ObserveDispatchFailure("redis")
	m.ObserveAvailability(0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("ok", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("rejected", "SchedulingConflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("cancel", "rejected", "InvalidTransition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchFailures.WithLabelValues("redis")))
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("")
	m.ObserveTransition("confirm", "")
	m.ObserveDispatchFailure("sqs")
	m.ObserveAvailability(0.1)
}
