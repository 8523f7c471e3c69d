// Package datastore holds records in process for deployments without
// PostgreSQL. It answers the same SearchQuery the SQL record store does.
package datastore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/neonviz/neon/internal/metrics"
	"github.com/neonviz/neon/internal/models"
)

const (
	defaultSearchLimit = 10000
	maxSearchLimit     = 50000
)

type tableKey struct {
	tenant, datastore, table string
}

// EventRecordsIngested is published after records are stored.
const EventRecordsIngested = "records.ingested"

// Broadcaster delivers a tenant event to live subscribers.
type Broadcaster interface {
	BroadcastEvent(eventType, tenantID string, data json.RawMessage)
}

// Memory is a concurrency-safe in-process record store.
type Memory struct {
	mu     sync.RWMutex
	tables map[tableKey][]models.Record
	events Broadcaster
}

// NewMemory creates an empty store. events may be nil.
func NewMemory(events ...Broadcaster) *Memory {
	m := &Memory{tables: make(map[tableKey][]models.Record)}
	if len(events) > 0 {
		m.events = events[0]
	}

	return m
}

// InsertRecords appends records to a table and returns how many were stored.
func (m *Memory) InsertRecords(_ context.Context, tenantID, datastore, table string, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	key := tableKey{tenantID, datastore, table}

	m.mu.Lock()
	m.tables[key] = append(m.tables[key], records...)
	m.mu.Unlock()

	metrics.RecordsIngested.Add(float64(len(records)))

	if m.events != nil {
		data, err := json.Marshal(map[string]any{"datastore": datastore, "table": table, "count": len(records)})
		if err == nil {
			m.events.BroadcastEvent(EventRecordsIngested, tenantID, data)
		}
	}

	return len(records), nil
}

// SearchRecords returns the records of one table admitted by q, in insertion
// order.
func (m *Memory) SearchRecords(_ context.Context, tenantID string, q models.SearchQuery) ([]models.Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	limit = min(limit, maxSearchLimit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Record
	for _, r := range m.tables[tableKey{tenantID, q.Datastore, q.Table}] {
		if len(out) == limit {
			break
		}

		if q.Admits(r) {
			out = append(out, r)
		}
	}

	return out, nil
}
