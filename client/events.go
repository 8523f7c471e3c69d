package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Subscription narrows the event stream.
type Subscription struct {
	// Widget withholds filters.changed events it caused itself unless the
	// exchange asked to notify the origin.
	Widget string
	// Events limits the stream to these event types. Empty means all.
	Events []string
	// LastEventID replays buffered events after this ID.
	LastEventID uint64
}

// Events connects to the WebSocket stream and delivers events until ctx is
// cancelled or the server closes the connection. The channel is closed then.
// An event of type "reset" means buffered events were lost and state should
// be reloaded.
func (c *Client) Events(ctx context.Context, sub Subscription) (<-chan Event, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/ws"

	header := http.Header{}
	c.authorize(header)

	// The dialer rejects clients with a Timeout; ctx bounds the handshake.
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial events: %w", err)
	}

	msg := map[string]any{
		"type":          "subscribe",
		"widget":        sub.Widget,
		"events":        sub.Events,
		"last_event_id": sub.LastEventID,
	}
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		conn.CloseNow() //nolint:errcheck // already failing.
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer conn.CloseNow() //nolint:errcheck // teardown.

		for {
			var raw json.RawMessage
			if err := wsjson.Read(ctx, conn, &raw); err != nil {
				return
			}

			var evt Event
			if err := json.Unmarshal(raw, &evt); err != nil {
				continue
			}

			// Control messages carry no ID. A reset is passed on so the
			// caller can refresh; shutdown ends the stream.
			if evt.ID == 0 && evt.Type == "shutdown" {
				return
			}

			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
