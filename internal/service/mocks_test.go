package service

import (
	"context"
	"sync"

	"github.com/neonviz/neon/internal/filter"
	"github.com/neonviz/neon/internal/models"
)

// mockCollection records calls and returns configured responses.
type mockCollection struct {
	mu    sync.Mutex
	calls []string

	list     func(ctx context.Context, tenantID string) ([]models.FilterDesign, error)
	exchange func(ctx context.Context, tenantID string, set, del []models.FilterDesign, notifySelf bool, origin string) ([]models.FilterDesign, error)
	clear    func(ctx context.Context, tenantID string) (int, error)
}

func (m *mockCollection) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockCollection) List(ctx context.Context, tenantID string) ([]models.FilterDesign, error) {
	m.record("List")
	if m.list == nil {
		return nil, nil
	}
	return m.list(ctx, tenantID)
}

func (m *mockCollection) ExchangeFilters(
	ctx context.Context, tenantID string, set, del []models.FilterDesign, notifySelf bool, origin string,
) ([]models.FilterDesign, error) {
	m.record("ExchangeFilters")
	return m.exchange(ctx, tenantID, set, del, notifySelf, origin)
}

func (m *mockCollection) Clear(ctx context.Context, tenantID string) (int, error) {
	m.record("Clear")
	return m.clear(ctx, tenantID)
}

func (m *mockCollection) Subscribe(filter.Listener) {}

// countingSearcher wraps a searcher and counts queries.
type countingSearcher struct {
	mu    sync.Mutex
	n     int
	inner RecordSearcher
	gate  chan struct{}
}

func (c *countingSearcher) SearchRecords(ctx context.Context, tenantID string, q models.SearchQuery) ([]models.Record, error) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()

	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return c.inner.SearchRecords(ctx, tenantID, q)
}

func (c *countingSearcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// mockInserter returns a fixed count.
type mockInserter struct {
	insert func(ctx context.Context, tenantID, datastore, table string, records []models.Record) (int, error)
}

func (m *mockInserter) InsertRecords(ctx context.Context, tenantID, datastore, table string, records []models.Record) (int, error) {
	return m.insert(ctx, tenantID, datastore, table, records)
}

// mockInvalidator records invalidated tables.
type mockInvalidator struct {
	tables []string
}

func (m *mockInvalidator) Invalidate(tenantID, datastore, table string) {
	m.tables = append(m.tables, tenantID+"/"+datastore+"."+table)
}
