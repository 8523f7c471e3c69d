package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/dbpool"
)

// ChangeChannel is the NOTIFY channel stores publish on.
const ChangeChannel = "neon_changes"

// validChannel matches safe PostgreSQL LISTEN channel names.
var validChannel = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2
	readDeadline      = 2 * time.Minute
	defaultEventType  = "datastore.changed"
)

// Broadcaster sends typed events to a tenant's connected clients.
type Broadcaster interface {
	BroadcastEvent(eventType, tenantID string, data json.RawMessage)
}

// NotifyBridge LISTENs on ChangeChannel and forwards each payload to the
// WebSocket hub, so every server instance sees changes made through any other.
type NotifyBridge struct {
	log     *logrus.Logger
	pool    *dbpool.Pool
	hub     Broadcaster
	channel string
}

// NewNotifyBridge creates a NotifyBridge wired to the given pool and hub.
func NewNotifyBridge(log *logrus.Logger, pool *dbpool.Pool, hub Broadcaster) *NotifyBridge {
	return &NotifyBridge{
		log:     log,
		pool:    pool,
		hub:     hub,
		channel: ChangeChannel,
	}
}

// Start verifies the database is reachable and launches the listen loop,
// which reconnects with jittered backoff until ctx is cancelled.
func (b *NotifyBridge) Start(ctx context.Context) error {
	if !validChannel.MatchString(b.channel) {
		return fmt.Errorf("notify bridge: invalid channel name %q", b.channel)
	}

	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("notify bridge: database not reachable: %w", err)
	}

	go b.listen(ctx)

	return nil
}

func (b *NotifyBridge) listen(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := b.subscribeAndForward(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		b.log.WithError(err).WithField("retry_in", backoff).
			Warn("notify bridge connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = nextBackoff(backoff)
	}
}

func (b *NotifyBridge) subscribeAndForward(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{b.channel}.Sanitize()); err != nil {
		return fmt.Errorf("executing LISTEN: %w", err)
	}

	b.log.WithField("channel", b.channel).Info("notify bridge listening")

	for {
		// Wake periodically so a cancelled ctx is noticed on an idle channel.
		if err := conn.Conn().PgConn().Conn().SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}

		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return fmt.Errorf("waiting for notification: %w", err)
		}

		b.handleNotification(notification)
	}
}

// handleNotification forwards one payload. Payloads must name a tenant;
// the event type defaults to a generic datastore change.
func (b *NotifyBridge) handleNotification(n *pgconn.Notification) {
	var payload struct {
		TenantID string `json:"tenant_id"`
		Type     string `json:"type,omitempty"`
	}
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil || payload.TenantID == "" {
		b.log.WithField("channel", n.Channel).Warn("dropping notification without tenant_id")
		return
	}

	eventType := payload.Type
	if eventType == "" {
		eventType = defaultEventType
	}

	b.log.WithFields(logrus.Fields{
		"type":      eventType,
		"tenant_id": payload.TenantID,
		"pid":       n.PID,
	}).Debug("notification received")

	b.hub.BroadcastEvent(eventType, payload.TenantID, json.RawMessage(n.Payload))
}

// nextBackoff doubles the backoff with ±25% jitter, capped at maxBackoff.
func nextBackoff(current time.Duration) time.Duration {
	next := current * backoffMultiplier
	if next > maxBackoff {
		next = maxBackoff
	}

	jitter := float64(next) * (0.75 + rand.Float64()*0.5) //nolint:gosec // jitter doesn't need crypto rand.

	return time.Duration(jitter)
}
