package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"clinic-booking-server/internal/scheduling"
)

const defaultStreamMaxLen = 10000

// RedisPublisher appends events to a Redis stream for downstream consumers
// (reminder workers, calendar sync).
type RedisPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisPublisher(client redis.Cmdable, stream string) *RedisPublisher {
	if client == nil {
		panic("notify: redis client cannot be nil")
	}
	if stream == "" {
		panic("notify: redis stream cannot be empty")
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: defaultStreamMaxLen}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, evt scheduling.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: failed to encode event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"appointment_id": evt.AppointmentID,
			"action":         string(evt.Action),
			"payload":        string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("notify: failed to append to stream %s: %w", p.stream, err)
	}
	return nil
}
