// Package domain defines the canonical service interfaces shared across API
// layers (REST, WebSocket, client). Consumers should depend on these interfaces
// rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/neonviz/neon/internal/models"
)

// TaxonomyService defines taxonomy widget operations.
type TaxonomyService interface {
	Widgets() []models.WidgetSummary
	Build(ctx context.Context, tenantID, widgetID string, records []models.Record) (*models.TaxonomyResult, error)
	Tree(ctx context.Context, tenantID, widgetID string) (*models.TaxonomyResult, error)
	Toggle(ctx context.Context, tenantID, widgetID string, req models.ToggleRequest) (*models.ToggleResult, error)
}

// FilterService defines operations on a tenant's active filter designs.
type FilterService interface {
	ListFilters(ctx context.Context, tenantID string) ([]models.FilterDesign, error)
	ExchangeFilters(ctx context.Context, tenantID string, req models.ExchangeRequest) ([]models.FilterDesign, error)
	ClearFilters(ctx context.Context, tenantID string) (int, error)
}

// RecordService defines datastore ingest.
type RecordService interface {
	IngestRecords(ctx context.Context, tenantID, datastore, table string, records []models.Record) (*models.IngestResult, error)
}
