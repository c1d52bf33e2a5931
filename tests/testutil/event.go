package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wms/backend/internal/domain/shared"
)

// MockEventHandler records every event it receives and can be primed to
// fail, standing in for projection handlers in bus and flow tests.
type MockEventHandler struct {
	types []string

	mu      sync.Mutex
	seen    []shared.DomainEvent
	failure error
}

// NewMockEventHandler returns a handler subscribed to the given event types.
func NewMockEventHandler(eventTypes ...string) *MockEventHandler {
	return &MockEventHandler{types: eventTypes}
}

func (h *MockEventHandler) EventTypes() []string {
	return h.types
}

func (h *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, event)
	return h.failure
}

// Handled returns a copy of the events received so far.
func (h *MockEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.seen)
}

// HandledCount returns how many events the handler has received.
func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

// SetError makes subsequent Handle calls return err. Events are still recorded.
func (h *MockEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failure = err
}

// Reset discards recorded events and clears any primed failure.
func (h *MockEventHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = nil
	h.failure = nil
}

// TestEvent is a minimal warehouse job event for wiring tests.
type TestEvent struct {
	shared.BaseDomainEvent
	JobCode string
}

// NewTestEvent builds a job event of the given type with fresh identifiers.
func NewTestEvent(eventType string) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "WarehouseJob", uuid.New()),
		JobCode:         "JOB-20260901-0001",
	}
}

// NewTestEventWithID builds a job event carrying a specific event ID.
func NewTestEventWithID(eventID uuid.UUID, eventType string) *TestEvent {
	ev := NewTestEvent(eventType)
	ev.ID = eventID
	return ev
}

// WaitForCondition polls until the condition holds or the timeout passes.
func WaitForCondition(t *testing.T, condition func() bool, timeout, interval time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}

// WaitForEventCount blocks until the handler has seen at least count events.
func WaitForEventCount(t *testing.T, handler *MockEventHandler, count int, timeout time.Duration) bool {
	t.Helper()

	return WaitForCondition(t, func() bool {
		return handler.HandledCount() >= count
	}, timeout, 10*time.Millisecond)
}
