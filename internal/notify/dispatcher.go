package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clinic-booking-server/internal/metrics"
	"clinic-booking-server/internal/scheduling"
)

const defaultPublishTimeout = 2 * time.Second

// Dispatcher hands each event to every publisher. Failures are logged and
// counted, never returned.
type Dispatcher struct {
	publishers []Publisher
	timeout    time.Duration
	logger     zerolog.Logger
	metrics    *metrics.BookingMetrics
}

func NewDispatcher(logger zerolog.Logger, m *metrics.BookingMetrics, timeout time.Duration, publishers ...Publisher) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Dispatcher{
		publishers: publishers,
		timeout:    timeout,
		logger:     logger.With().Str("component", "dispatcher").Logger(),
		metrics:    m,
	}
}

// Dispatch publishes evt synchronously, each sink bounded by the timeout.
// The caller's cancellation does not cut a publish short.
func (d *Dispatcher) Dispatch(ctx context.Context, evt scheduling.Event) {
	if d == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	for _, p := range d.publishers {
		d.publish(base, p, evt)
	}
}

func (d *Dispatcher) publish(ctx context.Context, p Publisher, evt scheduling.Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.metrics.ObserveDispatchFailure(p.Name())
			d.logger.Error().Interface("panic", r).Str("sink", p.Name()).Str("appointment_id", evt.AppointmentID).Msg("publisher panicked")
		}
	}()

	if err := p.Publish(ctx, evt); err != nil {
		d.metrics.ObserveDispatchFailure(p.Name())
		d.logger.Warn().Err(err).
			Str("sink", p.Name()).
			Str("appointment_id", evt.AppointmentID).
			Str("action", string(evt.Action)).
			Msg("notification not delivered")
	}
}
