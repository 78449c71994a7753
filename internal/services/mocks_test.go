package services

import (
	"context"
	"sync"
	"time"

	"clinic-booking-server/internal/scheduling"
)

// Compile-time check to ensure MockNotifier implements Notifier
var _ Notifier = (*MockNotifier)(nil)

// MockNotifier records dispatched events.
type MockNotifier struct {
	DispatchFunc func(ctx context.Context, evt scheduling.Event)

	mu     sync.Mutex
	events []scheduling.Event
}

func (m *MockNotifier) Dispatch(ctx context.Context, evt scheduling.Event) {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	if m.DispatchFunc != nil {
		m.DispatchFunc(ctx, evt)
	}
}

func (m *MockNotifier) Events() []scheduling.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scheduling.Event(nil), m.events...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
