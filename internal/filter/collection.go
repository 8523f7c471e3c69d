// Package filter keeps the active filter designs for each tenant and
// broadcasts changes to interested widgets.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/metrics"
	"github.com/neonviz/neon/internal/models"
)

// EventFiltersChanged is the event type published after an exchange or clear.
const EventFiltersChanged = "filters.changed"

// Store persists filter designs. Update must apply fn atomically: no other
// Update for the same tenant may interleave between the read and the write.
type Store interface {
	Load(ctx context.Context, tenantID string) ([]models.FilterDesign, error)
	Update(ctx context.Context, tenantID string, fn func([]models.FilterDesign) []models.FilterDesign) ([]models.FilterDesign, error)
}

// Broadcaster delivers a tenant event to live subscribers.
type Broadcaster interface {
	BroadcastEvent(eventType, tenantID string, data json.RawMessage)
}

// Listener is called in-process after a tenant's filters change.
type Listener func(tenantID string, change models.FilterChange)

// Option configures a Collection.
type Option func(*Collection)

// WithBroadcaster publishes filters.changed events through b.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *Collection) { c.broadcaster = b }
}

// WithClock overrides the timestamp source for new designs.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// Collection is the filter service a taxonomy consults to seed its tree and
// hands its exchanges to.
type Collection struct {
	store       Store
	log         *logrus.Logger
	broadcaster Broadcaster
	now         func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// NewCollection creates a Collection over store.
func NewCollection(store Store, log *logrus.Logger, opts ...Option) *Collection {
	c := &Collection{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe registers fn for every subsequent change.
func (c *Collection) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, fn)
}

// List returns the tenant's active designs.
func (c *Collection) List(ctx context.Context, tenantID string) ([]models.FilterDesign, error) {
	designs, err := c.store.Load(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing filters: %w", err)
	}

	return designs, nil
}

// IsNodeFiltered reports whether a "!=" design on field excludes value.
func (c *Collection) IsNodeFiltered(ctx context.Context, tenantID string, field models.FieldReference, value string) (bool, error) {
	designs, err := c.List(ctx, tenantID)
	if err != nil {
		return false, err
	}

	return Excludes(designs, field, value), nil
}

// Predicate snapshots the tenant's designs into a lookup usable while
// building a tree.
func (c *Collection) Predicate(ctx context.Context, tenantID string) (func(models.FieldReference, string) bool, error) {
	designs, err := c.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return func(field models.FieldReference, value string) bool {
		return Excludes(designs, field, value)
	}, nil
}

// ExchangeFilters atomically removes the designs named by del, replaces
// designs on the fields named by set and stores the new designs. The change
// is announced to listeners; notifySelf tells the originating widget whether
// to react to its own change.
func (c *Collection) ExchangeFilters(
	ctx context.Context,
	tenantID string,
	set, del []models.FilterDesign,
	notifySelf bool,
	origin string,
) ([]models.FilterDesign, error) {
	now := c.now().UTC()

	added := make([]models.FilterDesign, len(set))
	for i, d := range set {
		d.ID = uuid.NewString()
		d.Origin = origin
		d.UpdatedAt = now
		if d.Compound == "" {
			d.Compound = models.CompoundAnd
		}
		added[i] = d
	}

	next, err := c.store.Update(ctx, tenantID, func(current []models.FilterDesign) []models.FilterDesign {
		return exchange(current, added, del)
	})
	if err != nil {
		return nil, fmt.Errorf("exchanging filters: %w", err)
	}

	metrics.FiltersExchanged.Add(float64(len(set) + len(del)))

	c.publish(tenantID, models.FilterChange{
		Origin:     origin,
		NotifySelf: notifySelf,
		Fields:     changedFields(set, del),
	})

	c.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"origin":    origin,
		"set":       len(set),
		"delete":    len(del),
		"active":    len(next),
	}).Debug("filters exchanged")

	return next, nil
}

// Clear drops every design for the tenant and returns how many were removed.
func (c *Collection) Clear(ctx context.Context, tenantID string) (int, error) {
	var removed []models.FilterDesign

	_, err := c.store.Update(ctx, tenantID, func(current []models.FilterDesign) []models.FilterDesign {
		removed = current
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clearing filters: %w", err)
	}

	if len(removed) > 0 {
		c.publish(tenantID, models.FilterChange{NotifySelf: true, Fields: changedFields(removed, nil)})
	}

	return len(removed), nil
}

func (c *Collection) publish(tenantID string, change models.FilterChange) {
	c.mu.RLock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(tenantID, change)
	}

	if c.broadcaster == nil {
		return
	}

	data, err := json.Marshal(change)
	if err != nil {
		c.log.WithError(err).Error("failed to marshal filter change")
		return
	}

	c.broadcaster.BroadcastEvent(EventFiltersChanged, tenantID, data)
}

// Excludes reports whether any "!=" design on field lists value.
func Excludes(designs []models.FilterDesign, field models.FieldReference, value string) bool {
	for i := range designs {
		if designs[i].Matches(field, models.OperatorNotEqual) && designs[i].Contains(value) {
			return true
		}
	}

	return false
}

// exchange computes the design list after removing del and replacing set.
func exchange(current, set, del []models.FilterDesign) []models.FilterDesign {
	next := make([]models.FilterDesign, 0, len(current)+len(set))

	for _, d := range current {
		if deleted(d, del) || replaced(d, set) {
			continue
		}
		next = append(next, d)
	}

	return append(next, set...)
}

// deleted reports whether a delete design covers d. A wildcard delete covers
// every design on its field and operator; otherwise the values must match.
func deleted(d models.FilterDesign, del []models.FilterDesign) bool {
	for i := range del {
		if !d.Matches(del[i].Field, del[i].Operator) {
			continue
		}

		if del[i].IsWildcard() || sameValues(d.DefinedValues(), del[i].DefinedValues()) {
			return true
		}
	}

	return false
}

func replaced(d models.FilterDesign, set []models.FilterDesign) bool {
	for i := range set {
		if d.Matches(set[i].Field, set[i].Operator) {
			return true
		}
	}

	return false
}

func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}

	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}

	return true
}

func changedFields(set, del []models.FilterDesign) []string {
	seen := make(map[string]struct{}, len(set)+len(del))
	out := make([]string, 0, len(set)+len(del))

	for _, group := range [][]models.FilterDesign{set, del} {
		for i := range group {
			k := group[i].Field.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	sort.Strings(out)

	return out
}
