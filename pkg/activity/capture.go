package activity

import (
	"context"
	"sync"
)

// CaptureHook keeps every settings event it receives. It is meant for tests
// and examples that assert on what a provider emitted.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

// Notify records the event and returns any configured error.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Trail lists captured events as "verb/tier" in arrival order.
func (h *CaptureHook) Trail() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	trail := make([]string, 0, len(h.Events))
	for _, event := range h.Events {
		trail = append(trail, event.Verb+"/"+event.Tier())
	}
	return trail
}

// ForRepository returns the captured events for one repository key.
func (h *CaptureHook) ForRepository(key string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var matched []Event
	for _, event := range h.Events {
		if event.ObjectID == key {
			matched = append(matched, event)
		}
	}
	return matched
}
