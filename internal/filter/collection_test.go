package filter

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonviz/neon/internal/models"
)

const testTenant = "00000000-0000-0000-0000-000000000001"

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func field(column string) models.FieldReference {
	return models.FieldReference{Database: "db", Table: "docs", Column: column}
}

func exclude(column string, values ...string) models.FilterDesign {
	return models.NewExclusion(field(column), models.Values(values...))
}

func clearAll(column string) models.FilterDesign {
	return models.NewExclusion(field(column), []models.FilterValue{models.Undefined()})
}

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	bs, err := OpenBadger(BadgerConfig{InMemory: true}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": bs,
	}
}

type recordedEvent struct {
	eventType string
	tenantID  string
	change    models.FilterChange
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) BroadcastEvent(eventType, tenantID string, data json.RawMessage) {
	var change models.FilterChange
	_ = json.Unmarshal(data, &change)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{eventType, tenantID, change})
}

func columnsOf(designs []models.FilterDesign) []string {
	out := make([]string, len(designs))
	for i, d := range designs {
		out[i] = d.Field.Column
	}
	return out
}

func TestExchangeFilters_SetThenReplace(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			c := NewCollection(store, testLogger(), WithClock(func() time.Time { return fixed }))

			_, err := c.ExchangeFilters(ctx, testTenant,
				[]models.FilterDesign{exclude("category", "a"), exclude("type", "t1")}, nil, false, "widget-1")
			require.NoError(t, err)

			next, err := c.ExchangeFilters(ctx, testTenant,
				[]models.FilterDesign{exclude("type", "t2", "t3")}, nil, false, "widget-1")
			require.NoError(t, err)

			assert.Equal(t, []string{"category", "type"}, columnsOf(next))
			assert.Equal(t, []string{"t2", "t3"}, next[1].DefinedValues())
			assert.Equal(t, "widget-1", next[1].Origin)
			assert.Equal(t, fixed, next[1].UpdatedAt)
			assert.NotEmpty(t, next[1].ID)

			listed, err := c.List(ctx, testTenant)
			require.NoError(t, err)
			assert.Equal(t, columnsOf(next), columnsOf(listed))
		})
	}
}

func TestExchangeFilters_WildcardDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := NewCollection(store, testLogger())

			_, err := c.ExchangeFilters(ctx, testTenant,
				[]models.FilterDesign{exclude("category", "a"), exclude("type", "t1")}, nil, false, "w")
			require.NoError(t, err)

			next, err := c.ExchangeFilters(ctx, testTenant,
				[]models.FilterDesign{exclude("subtype", "s1")},
				[]models.FilterDesign{clearAll("category")}, false, "w")
			require.NoError(t, err)

			assert.Equal(t, []string{"type", "subtype"}, columnsOf(next))
		})
	}
}

func TestExchangeFilters_ValuedDeleteMatchesExactSet(t *testing.T) {
	ctx := context.Background()
	c := NewCollection(NewMemoryStore(), testLogger())

	_, err := c.ExchangeFilters(ctx, testTenant, []models.FilterDesign{exclude("category", "a", "b")}, nil, false, "w")
	require.NoError(t, err)

	next, err := c.ExchangeFilters(ctx, testTenant, nil, []models.FilterDesign{exclude("category", "a")}, false, "w")
	require.NoError(t, err)
	assert.Len(t, next, 1)

	next, err = c.ExchangeFilters(ctx, testTenant, nil, []models.FilterDesign{exclude("category", "b", "a")}, false, "w")
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestExchangeFilters_TenantsIsolated(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := NewCollection(store, testLogger())
			other := "00000000-0000-0000-0000-000000000002"

			_, err := c.ExchangeFilters(ctx, testTenant, []models.FilterDesign{exclude("category", "a")}, nil, false, "w")
			require.NoError(t, err)

			got, err := c.List(ctx, other)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestIsNodeFiltered(t *testing.T) {
	ctx := context.Background()
	c := NewCollection(NewMemoryStore(), testLogger())

	_, err := c.ExchangeFilters(ctx, testTenant, []models.FilterDesign{
		exclude("category", "a"),
		{Compound: models.CompoundAnd, Field: field("type"), Operator: "=", Values: models.Values("t1")},
	}, nil, false, "w")
	require.NoError(t, err)

	tests := []struct {
		column string
		value  string
		want   bool
	}{
		{"category", "a", true},
		{"category", "b", false},
		{"type", "t1", false},
		{"subtype", "a", false},
	}

	for _, tt := range tests {
		got, err := c.IsNodeFiltered(ctx, testTenant, field(tt.column), tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s=%s", tt.column, tt.value)
	}

	pred, err := c.Predicate(ctx, testTenant)
	require.NoError(t, err)
	assert.True(t, pred(field("category"), "a"))
	assert.False(t, pred(models.FieldReference{Database: "db", Table: "other", Column: "category"}, "a"))
}

func TestExchangeFilters_Publishes(t *testing.T) {
	ctx := context.Background()
	fb := &fakeBroadcaster{}
	c := NewCollection(NewMemoryStore(), testLogger(), WithBroadcaster(fb))

	var heard []models.FilterChange
	c.Subscribe(func(tenantID string, change models.FilterChange) {
		assert.Equal(t, testTenant, tenantID)
		heard = append(heard, change)
	})

	_, err := c.ExchangeFilters(ctx, testTenant,
		[]models.FilterDesign{exclude("type", "t1")},
		[]models.FilterDesign{clearAll("category")}, false, "widget-9")
	require.NoError(t, err)

	want := models.FilterChange{
		Origin: "widget-9",
		Fields: []string{"db.docs.category", "db.docs.type"},
	}

	require.Len(t, heard, 1)
	if diff := cmp.Diff(want, heard[0]); diff != "" {
		t.Errorf("listener change mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, fb.events, 1)
	assert.Equal(t, EventFiltersChanged, fb.events[0].eventType)
	assert.Equal(t, testTenant, fb.events[0].tenantID)
	if diff := cmp.Diff(want, fb.events[0].change); diff != "" {
		t.Errorf("broadcast change mismatch (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := NewCollection(store, testLogger())

			n, err := c.Clear(ctx, testTenant)
			require.NoError(t, err)
			assert.Zero(t, n)

			_, err = c.ExchangeFilters(ctx, testTenant,
				[]models.FilterDesign{exclude("category", "a"), exclude("type", "b")}, nil, false, "w")
			require.NoError(t, err)

			n, err = c.Clear(ctx, testTenant)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			got, err := c.List(ctx, testTenant)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestExchangeFilters_Concurrent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := NewCollection(store, testLogger())

			columns := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7"}

			var wg sync.WaitGroup
			errs := make(chan error, len(columns))
			for _, col := range columns {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := c.ExchangeFilters(ctx, testTenant, []models.FilterDesign{exclude(col, "x")}, nil, false, "w")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				require.NoError(t, err)
			}

			got, err := c.List(ctx, testTenant)
			require.NoError(t, err)
			assert.ElementsMatch(t, columns, columnsOf(got))
		})
	}
}

func TestBadgerStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	bs, err := OpenBadger(BadgerConfig{Path: dir}, testLogger())
	require.NoError(t, err)

	_, err = NewCollection(bs, testLogger()).ExchangeFilters(ctx, testTenant,
		[]models.FilterDesign{exclude("category", "a"), clearAll("type")}, nil, false, "w")
	require.NoError(t, err)
	require.NoError(t, bs.Close())

	reopened, err := OpenBadger(BadgerConfig{Path: dir}, testLogger())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a"}, got[0].DefinedValues())
	assert.True(t, got[1].IsWildcard())
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{}, testLogger())
	assert.Error(t, err)
}
