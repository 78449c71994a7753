package notify

import (
	"context"

	"github.com/rs/zerolog"

	"clinic-booking-server/internal/scheduling"
)

// LogPublisher writes events to the structured log. It is the default sink
// and the one used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "notify").Logger()}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(_ context.Context, evt scheduling.Event) error {
	p.logger.Info().
		Str("appointment_id", evt.AppointmentID).
		Str("action", string(evt.Action)).
		Str("status", string(evt.Status)).
		Str("patient_id", evt.PatientID).
		Str("doctor_id", evt.DoctorID).
		Str("actor", evt.Actor).
		Time("at", evt.Timestamp).
		Msg("appointment event")
	return nil
}
