// Package notify fans booking events out to external sinks. Publishing is
// best-effort: a failed notification never undoes or fails a booking.
package notify

import (
	"context"

	"clinic-booking-server/internal/scheduling"
)

// Publisher delivers one event to a sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, evt scheduling.Event) error
}
