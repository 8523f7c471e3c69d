package api_test

import (
	"context"

	"github.com/neonviz/neon/internal/models"
)

// mockTaxonomy implements domain.TaxonomyService for testing.
type mockTaxonomy struct {
	widgets  []models.WidgetSummary
	buildFn  func(ctx context.Context, tenantID, widgetID string, records []models.Record) (*models.TaxonomyResult, error)
	treeFn   func(ctx context.Context, tenantID, widgetID string) (*models.TaxonomyResult, error)
	toggleFn func(ctx context.Context, tenantID, widgetID string, req models.ToggleRequest) (*models.ToggleResult, error)
}

func (m *mockTaxonomy) Widgets() []models.WidgetSummary { return m.widgets }

func (m *mockTaxonomy) Build(ctx context.Context, tenantID, widgetID string, records []models.Record) (*models.TaxonomyResult, error) {
	return m.buildFn(ctx, tenantID, widgetID, records)
}

func (m *mockTaxonomy) Tree(ctx context.Context, tenantID, widgetID string) (*models.TaxonomyResult, error) {
	return m.treeFn(ctx, tenantID, widgetID)
}

func (m *mockTaxonomy) Toggle(ctx context.Context, tenantID, widgetID string, req models.ToggleRequest) (*models.ToggleResult, error) {
	return m.toggleFn(ctx, tenantID, widgetID, req)
}

// mockFilters implements domain.FilterService for testing.
type mockFilters struct {
	listFn     func(ctx context.Context, tenantID string) ([]models.FilterDesign, error)
	exchangeFn func(ctx context.Context, tenantID string, req models.ExchangeRequest) ([]models.FilterDesign, error)
	clearFn    func(ctx context.Context, tenantID string) (int, error)
}

func (m *mockFilters) ListFilters(ctx context.Context, tenantID string) ([]models.FilterDesign, error) {
	return m.listFn(ctx, tenantID)
}

func (m *mockFilters) ExchangeFilters(ctx context.Context, tenantID string, req models.ExchangeRequest) ([]models.FilterDesign, error) {
	return m.exchangeFn(ctx, tenantID, req)
}

func (m *mockFilters) ClearFilters(ctx context.Context, tenantID string) (int, error) {
	return m.clearFn(ctx, tenantID)
}

// mockRecords implements domain.RecordService for testing.
type mockRecords struct {
	ingestFn func(ctx context.Context, tenantID, datastore, table string, records []models.Record) (*models.IngestResult, error)
}

func (m *mockRecords) IngestRecords(ctx context.Context, tenantID, datastore, table string, records []models.Record) (*models.IngestResult, error) {
	return m.ingestFn(ctx, tenantID, datastore, table, records)
}
