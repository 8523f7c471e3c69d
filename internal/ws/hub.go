// Package ws streams tenant events (filter changes, datastore changes) to
// WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/metrics"
)

// Hub channel buffer sizes.
const (
	broadcastBuffer = 256
	registerBuffer  = 64
)

// Default connection caps.
const (
	DefaultMaxClients       = 1000
	DefaultMaxTenantClients = 50
)

// tenantBroadcast is sent through the broadcast channel to the Run goroutine.
type tenantBroadcast struct {
	evt *Event
	msg []byte
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLimits caps connections globally and per tenant.
func WithLimits(total, perTenant int) HubOption {
	return func(h *Hub) {
		if total > 0 {
			h.maxClients = total
		}
		if perTenant > 0 {
			h.maxTenantClients = perTenant
		}
	}
}

// WithReplayBuffer bounds how many events, and for how long, each tenant
// keeps for reconnecting clients.
func WithReplayBuffer(maxLen int, maxAge time.Duration) HubOption {
	return func(h *Hub) {
		h.replayLen = maxLen
		h.replayAge = maxAge
	}
}

// Hub manages active WebSocket clients and broadcasts messages.
// All client map mutations happen exclusively in the Run goroutine.
type Hub struct {
	clients          map[*Client]bool
	tenantCount      map[string]int
	register         chan *Client
	unregister       chan *Client
	broadcast        chan tenantBroadcast
	shutdown         chan struct{}
	done             chan struct{}
	count            atomic.Int64
	log              *logrus.Logger
	seq              *EventSequence
	replay           *replayLog
	maxClients       int
	maxTenantClients int
	replayLen        int
	replayAge        time.Duration
}

// NewHub creates a new Hub instance.
func NewHub(log *logrus.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients:          make(map[*Client]bool),
		tenantCount:      make(map[string]int),
		register:         make(chan *Client, registerBuffer),
		unregister:       make(chan *Client, registerBuffer),
		broadcast:        make(chan tenantBroadcast, broadcastBuffer),
		shutdown:         make(chan struct{}),
		done:             make(chan struct{}),
		log:              log,
		seq:              NewEventSequence(),
		maxClients:       DefaultMaxClients,
		maxTenantClients: DefaultMaxTenantClients,
	}

	for _, opt := range opts {
		opt(h)
	}

	h.replay = newReplayLog(h.replayLen, h.replayAge)

	return h
}

const (
	// drainTimeout is how long the hub waits for clients to flush after shutdown.
	drainTimeout        = 3 * time.Second
	replayPruneInterval = 10 * time.Minute
)

// Run starts the hub event loop. It should be run as a goroutine.
// It exits when Shutdown is called or the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	prune := time.NewTicker(replayPruneInterval)
	defer prune.Stop()

	for {
		select {
		case now := <-prune.C:
			h.replay.prune(now)

		case <-ctx.Done():
			h.drainClients()

			return
		case <-h.shutdown:
			h.drainClients()

			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
			}
			h.log.WithField("total", len(h.clients)).Info("client unregistered")

		case b := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(b.evt) {
					continue
				}
				select {
				case client.send <- b.msg:
				default:
					h.log.WithField("tenant_id", client.TenantID).Warn("client send buffer full, dropping client")
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) add(client *Client) {
	if len(h.clients) >= h.maxClients {
		h.log.Warn("global connection limit reached, dropping client")
		client.closeSend()
		return
	}

	if h.tenantCount[client.TenantID] >= h.maxTenantClients {
		h.log.WithField("tenant_id", client.TenantID).Warn("per-tenant connection limit reached, dropping client")
		client.closeSend()
		return
	}

	h.clients[client] = true
	h.tenantCount[client.TenantID]++
	h.updateCount()
	h.log.WithField("total", len(h.clients)).Info("client registered")
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	client.closeSend()

	h.tenantCount[client.TenantID]--
	if h.tenantCount[client.TenantID] <= 0 {
		delete(h.tenantCount, client.TenantID)
	}

	h.updateCount()
}

func (h *Hub) updateCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// maxBroadcastPayload is the maximum allowed event size (64 KB).
const maxBroadcastPayload = 64 << 10

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
		// Run loop already exited; client cleanup happened in Run shutdown.
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// BroadcastEvent assigns a sequence ID, stores the event for replay and
// queues it for the tenant's clients. A payload carrying an origin with
// notify_self false is withheld from clients subscribed as that origin.
func (h *Hub) BroadcastEvent(eventType, tenantID string, data json.RawMessage) {
	evt := Event{
		Type:     eventType,
		ID:       h.seq.Next(tenantID),
		TenantID: tenantID,
		Data:     data,
		Time:     time.Now(),
	}
	evt.parseOrigin()

	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal event")
		return
	}

	if len(msg) > maxBroadcastPayload {
		h.log.WithFields(logrus.Fields{
			"tenant_id":    tenantID,
			"type":         eventType,
			"payload_size": len(msg),
		}).Warn("dropping oversized event")
		return
	}

	h.replay.record(evt)

	select {
	case h.broadcast <- tenantBroadcast{evt: &evt, msg: msg}:
	default:
		h.log.Warn("broadcast channel full, dropping event")
	}
}

// Shutdown initiates a graceful WebSocket drain and blocks until it is done.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// drainClients sends a close frame to every client and waits for buffers to flush.
func (h *Hub) drainClients() {
	if len(h.clients) == 0 {
		return
	}

	h.log.WithField("clients", len(h.clients)).Info("draining WebSocket clients")

	shutdownMsg := []byte(`{"type":"shutdown","message":"server shutting down"}`)
	for client := range h.clients {
		select {
		case client.send <- shutdownMsg:
		default:
		}
	}

	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond) //nolint:mnd // poll interval
	defer ticker.Stop()

	for !h.drained() {
		select {
		case <-deadline.C:
			h.log.Warn("WebSocket drain timeout, closing remaining clients")
			h.closeAll()

			return
		case <-ticker.C:
		}
	}

	h.closeAll()
}

func (h *Hub) drained() bool {
	for client := range h.clients {
		if len(client.send) > 0 {
			return false
		}
	}

	return true
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}

	h.tenantCount = make(map[string]int)
	h.updateCount()
}

// ReplayEvents queues the tenant's events after lastEventID that the client
// wants. A zero ID requests nothing. It returns false when some of those
// events were already dropped and the client must reload its state.
func (h *Hub) ReplayEvents(client *Client, lastEventID uint64) bool {
	if lastEventID == 0 {
		return true
	}

	events, complete := h.replay.after(client.TenantID, lastEventID)
	if !complete {
		return false
	}

	for i := range events {
		if !client.wants(&events[i]) {
			continue
		}

		msg, err := json.Marshal(events[i])
		if err != nil {
			continue
		}

		select {
		case client.send <- msg:
		default:
			// The live stream resumes once the buffer drains.
			return true
		}
	}

	return true
}
