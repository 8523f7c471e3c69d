package db

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

type capturedEvent struct {
	eventType string
	tenantID  string
	data      string
}

type fakeHub struct {
	events []capturedEvent
}

func (f *fakeHub) BroadcastEvent(eventType, tenantID string, data json.RawMessage) {
	f.events = append(f.events, capturedEvent{eventType, tenantID, string(data)})
}

func newTestBridge() (*NotifyBridge, *fakeHub) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	hub := &fakeHub{}

	return NewNotifyBridge(log, nil, hub), hub
}

func TestHandleNotification(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantType string
		wantSent bool
	}{
		{"typed", `{"tenant_id":"t1","type":"filters.changed"}`, "filters.changed", true},
		{"default type", `{"tenant_id":"t1","count":3}`, defaultEventType, true},
		{"missing tenant", `{"type":"filters.changed"}`, "", false},
		{"invalid json", `not-json`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, hub := newTestBridge()
			b.handleNotification(&pgconn.Notification{Channel: ChangeChannel, Payload: tt.payload})

			if !tt.wantSent {
				if len(hub.events) != 0 {
					t.Fatalf("expected no events, got %d", len(hub.events))
				}
				return
			}

			if len(hub.events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(hub.events))
			}

			got := hub.events[0]
			if got.eventType != tt.wantType || got.tenantID != "t1" || got.data != tt.payload {
				t.Errorf("unexpected event %+v", got)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	for _, current := range []time.Duration{time.Second, 10 * time.Second, maxBackoff} {
		next := nextBackoff(current)

		base := current * backoffMultiplier
		if base > maxBackoff {
			base = maxBackoff
		}

		lo, hi := time.Duration(float64(base)*0.75), time.Duration(float64(base)*1.25)
		if next < lo || next > hi {
			t.Errorf("nextBackoff(%v) = %v, want within [%v, %v]", current, next, lo, hi)
		}
	}
}

func TestChannelNameIsValid(t *testing.T) {
	if !validChannel.MatchString(ChangeChannel) {
		t.Fatalf("channel %q does not match %s", ChangeChannel, validChannel)
	}
}
