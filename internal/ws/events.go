package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type     string          `json:"type"`
	ID       uint64          `json:"id"`
	TenantID string          `json:"-"`
	Data     json.RawMessage `json:"data"`
	Time     time.Time       `json:"time"`

	// origin is the widget that caused the event when it asked not to be
	// told about it.
	origin string
}

// parseOrigin records the payload's origin when notify_self is false.
func (e *Event) parseOrigin() {
	if len(e.Data) == 0 {
		return
	}

	var meta struct {
		Origin     string `json:"origin"`
		NotifySelf *bool  `json:"notify_self"`
	}
	if err := json.Unmarshal(e.Data, &meta); err != nil {
		return
	}

	if meta.NotifySelf != nil && !*meta.NotifySelf {
		e.origin = meta.Origin
	}
}

// SubscribeMsg is sent by the client to request replay and narrow the
// stream. Widget identifies the subscriber as a filter origin; Events limits
// delivery to the listed event types (empty means all).
type SubscribeMsg struct {
	Type        string   `json:"type"`
	LastEventID uint64   `json:"last_event_id"`
	Widget      string   `json:"widget,omitempty"`
	Events      []string `json:"events,omitempty"`
}

// ResetMsg tells the client to do a full refresh (requested events too old).
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EventSequence tracks monotonic event IDs per tenant.
type EventSequence struct {
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

// NewEventSequence creates a new EventSequence.
func NewEventSequence() *EventSequence {
	return &EventSequence{
		counters: make(map[string]*atomic.Uint64),
	}
}

// Next returns the next sequence number for a tenant.
func (es *EventSequence) Next(tenantID string) uint64 {
	es.mu.Lock()
	counter, ok := es.counters[tenantID]
	if !ok {
		counter = &atomic.Uint64{}
		es.counters[tenantID] = counter
	}
	es.mu.Unlock()

	return counter.Add(1)
}
