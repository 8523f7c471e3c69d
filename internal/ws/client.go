package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Connection limits and keepalive timings.
const (
	writeTimeout     = 10 * time.Second
	wsReadLimit      = 4096
	clientSendBuffer = 256
	maxConnLifetime  = 4 * time.Hour
	revalidateEvery  = 15 * time.Minute
	revalidateWithin = 10 * time.Second
	pingInterval     = 30 * time.Second
	pingTimeout      = 10 * time.Second
	maxMissedPongs   = 2
)

// TenantValidator validates that an API key still maps to a valid tenant.
type TenantValidator interface {
	GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error)
}

// Client wraps a single WebSocket connection managed by the Hub.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	log         *logrus.Logger
	TenantID    string
	apiKey      string
	validator   TenantValidator
	closeOnce   sync.Once
	connectedAt time.Time

	subMu  sync.RWMutex
	widget string
	events map[string]struct{}
}

// closeSend safely closes the send channel exactly once.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// NewClient creates a new Client of tenantID for the given WebSocket
// connection. validator may be nil when authentication is disabled.
func NewClient(hub *Hub, conn *websocket.Conn, tenantID string, validator TenantValidator, apiKey string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, clientSendBuffer),
		log:         hub.log,
		TenantID:    tenantID,
		apiKey:      apiKey,
		validator:   validator,
		connectedAt: time.Now(),
	}
}

// subscribe narrows the client's stream.
func (c *Client) subscribe(widget string, events []string) {
	var set map[string]struct{}
	if len(events) > 0 {
		set = make(map[string]struct{}, len(events))
		for _, e := range events {
			set[e] = struct{}{}
		}
	}

	c.subMu.Lock()
	c.widget = widget
	c.events = set
	c.subMu.Unlock()
}

// wants reports whether evt should be delivered to c.
func (c *Client) wants(evt *Event) bool {
	if evt.TenantID != c.TenantID {
		return false
	}

	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if evt.origin != "" && evt.origin == c.widget {
		return false
	}

	if c.events == nil {
		return true
	}

	_, ok := c.events[evt.Type]

	return ok
}

// ReadPump handles subscribe messages until the connection closes, then
// unregisters the client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // teardown
	}()

	c.conn.SetReadLimit(wsReadLimit)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.WithField("status", status).Debug("client disconnected")
			}

			return
		}

		c.handleMessage(data)
	}
}

// handleMessage applies a subscribe request: it narrows the stream and
// replays what the client missed, or tells it to reset.
func (c *Client) handleMessage(data []byte) {
	var msg SubscribeMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "subscribe" {
		return
	}

	c.subscribe(msg.Widget, msg.Events)

	if c.hub.ReplayEvents(c, msg.LastEventID) {
		return
	}

	reset, err := json.Marshal(ResetMsg{Type: "reset", Reason: "missed events are no longer buffered; reload taxonomy and filters"})
	if err != nil {
		return
	}

	select {
	case c.send <- reset:
	default:
	}
}

// WritePump delivers queued messages and keeps the connection healthy: it
// pings, re-validates the API key and closes the connection at
// maxConnLifetime.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // teardown

	ctx, cancel := context.WithDeadline(ctx, c.connectedAt.Add(maxConnLifetime))
	defer cancel()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	revalidate := time.NewTicker(revalidateEvery)
	defer revalidate.Stop()

	missed := 0

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				c.log.WithField("tenant_id", c.TenantID).Info("closing WebSocket: max connection lifetime exceeded")
				c.conn.Close(websocket.StatusNormalClosure, "max connection lifetime exceeded") //nolint:errcheck // best-effort
			}

			return
		case msg, ok := <-c.send:
			if !ok || !c.write(ctx, msg) {
				return
			}
		case <-ping.C:
			if c.ping(ctx) {
				missed = 0
				continue
			}

			if missed++; missed >= maxMissedPongs {
				c.log.WithField("tenant_id", c.TenantID).Debug("closing WebSocket: missed pongs")
				return
			}
		case <-revalidate.C:
			if !c.stillAuthorized(ctx) {
				c.log.WithField("tenant_id", c.TenantID).Info("closing WebSocket: api key no longer valid")
				c.conn.Close(websocket.StatusPolicyViolation, "authentication expired") //nolint:errcheck // best-effort

				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) bool {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		c.log.WithError(err).Debug("write failed")
		return false
	}

	return true
}

func (c *Client) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return c.conn.Ping(ctx) == nil
}

// stillAuthorized reports whether the client's API key still resolves to the
// tenant it connected as. Without a validator every key stays valid.
func (c *Client) stillAuthorized(ctx context.Context) bool {
	if c.validator == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, revalidateWithin)
	defer cancel()

	tenantID, err := c.validator.GetTenantByAPIKey(ctx, c.apiKey)

	return err == nil && tenantID == c.TenantID
}
