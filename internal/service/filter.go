package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/domain"
	"github.com/neonviz/neon/internal/models"
)

// Compile-time check: *FilterService must satisfy domain.FilterService.
var _ domain.FilterService = (*FilterService)(nil)

// DefaultOrigin tags exchanges that arrive without a widget origin.
const DefaultOrigin = "api"

// FilterStore is the collection surface FilterService passes through to.
type FilterStore interface {
	List(ctx context.Context, tenantID string) ([]models.FilterDesign, error)
	ExchangeFilters(
		ctx context.Context, tenantID string, set, del []models.FilterDesign, notifySelf bool, origin string,
	) ([]models.FilterDesign, error)
	Clear(ctx context.Context, tenantID string) (int, error)
}

// FilterService exposes the filter collection to API clients.
type FilterService struct {
	store FilterStore
	log   *logrus.Logger
}

// NewFilterService creates a FilterService.
func NewFilterService(store FilterStore, log *logrus.Logger) *FilterService {
	return &FilterService{store: store, log: log}
}

// ListFilters returns the tenant's active designs (pass-through).
func (s *FilterService) ListFilters(ctx context.Context, tenantID string) ([]models.FilterDesign, error) {
	return s.store.List(ctx, tenantID)
}

// ExchangeFilters applies a client exchange.
func (s *FilterService) ExchangeFilters(
	ctx context.Context, tenantID string, req models.ExchangeRequest,
) ([]models.FilterDesign, error) {
	origin := req.Origin
	if origin == "" {
		origin = DefaultOrigin
	}

	active, err := s.store.ExchangeFilters(ctx, tenantID, req.Set, req.Delete, req.NotifySelf, origin)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"action":    "filters.exchange",
		"tenant_id": tenantID,
		"origin":    origin,
		"active":    len(active),
	}).Info("filters exchanged")

	return active, nil
}

// ClearFilters drops every design for the tenant.
func (s *FilterService) ClearFilters(ctx context.Context, tenantID string) (int, error) {
	n, err := s.store.Clear(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"action":    "filters.clear",
		"tenant_id": tenantID,
		"removed":   n,
	}).Info("filters cleared")

	return n, nil
}
