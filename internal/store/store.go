// Package store provides PostgreSQL-backed data access for neon.
//
// Each store owns one concern (tenants, records, filters) and embeds the
// shared Base for its pool, logger and transaction helpers. Stores never
// import each other.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/db"
	"github.com/neonviz/neon/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for all stores.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// setTenant scopes row-level security policies to tenantID for the
// remainder of the transaction.
func setTenant(ctx context.Context, tx pgx.Tx, tenantID string) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return fmt.Errorf("invalid tenant ID format: %w", err)
	}

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return fmt.Errorf("setting tenant context: %w", err)
	}

	return nil
}

func (b *Base) beginTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if err := setTenant(ctx, tx, tenantID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

func (b *Base) beginReadTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := b.Pool.BeginReadOnly(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	if err := setTenant(ctx, tx, tenantID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// notify publishes a change on the bridge channel after commit. Failures
// are logged, never returned: the write already succeeded.
func (b *Base) notify(eventType, tenantID string, extra map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := map[string]any{"type": eventType, "tenant_id": tenantID}
	for k, v := range extra {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.Log.WithError(err).Warn("failed to encode change notification")
		return
	}

	if _, err := b.Pool.Exec(ctx, "SELECT pg_notify($1, $2)", db.ChangeChannel, string(data)); err != nil {
		b.Log.WithError(err).WithField("type", eventType).Warn("failed to send change notification")
	}
}

// Notifier relays events through pg_notify so that the notify bridge of
// every server instance, this one included, forwards them to its clients.
// It satisfies filter.Broadcaster.
type Notifier struct {
	Base
}

// NewNotifier creates a new Notifier.
func NewNotifier(base Base) *Notifier {
	return &Notifier{Base: base}
}

// BroadcastEvent merges data's top-level fields into the notification.
func (n *Notifier) BroadcastEvent(eventType, tenantID string, data json.RawMessage) {
	var extra map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &extra); err != nil {
			n.Log.WithError(err).WithField("type", eventType).Warn("dropping non-object event payload")
			return
		}
	}

	n.notify(eventType, tenantID, extra)
}
