package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neonviz/neon/internal/models"
)

// FilterStore persists filter designs in PostgreSQL. It satisfies
// filter.Store.
type FilterStore struct {
	Base
}

// NewFilterStore creates a new FilterStore.
func NewFilterStore(base Base) *FilterStore {
	return &FilterStore{Base: base}
}

// Load returns the tenant's designs in exchange order.
func (s *FilterStore) Load(ctx context.Context, tenantID string) ([]models.FilterDesign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading filters: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	return loadFilters(ctx, tx, tenantID)
}

// Update rewrites the tenant's designs in one transaction. A transaction
// scoped advisory lock on the tenant serialises concurrent updates, including
// the first one for a tenant with no rows to lock.
func (s *FilterStore) Update(
	ctx context.Context,
	tenantID string,
	fn func([]models.FilterDesign) []models.FilterDesign,
) ([]models.FilterDesign, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("updating filters: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext('filters:' || $1))", tenantID); err != nil {
		return nil, fmt.Errorf("locking tenant filters: %w", err)
	}

	current, err := loadFilters(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}

	next := fn(current)

	if _, err := tx.Exec(ctx, "DELETE FROM filters WHERE tenant_id = $1", tenantID); err != nil {
		return nil, fmt.Errorf("clearing filters: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range next {
		design, err := json.Marshal(&next[i])
		if err != nil {
			return nil, fmt.Errorf("encoding filter %s: %w", next[i].ID, err)
		}

		batch.Queue(`INSERT INTO filters (id, tenant_id, position, field_key, operator, design, origin, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			next[i].ID, tenantID, i, next[i].Field.Key(), next[i].Operator, design, next[i].Origin, next[i].UpdatedAt)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("inserting filters: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing filters: %w", err)
	}

	return next, nil
}

func loadFilters(ctx context.Context, tx pgx.Tx, tenantID string) ([]models.FilterDesign, error) {
	rows, err := tx.Query(ctx,
		"SELECT design FROM filters WHERE tenant_id = $1 ORDER BY position", tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying filters: %w", err)
	}

	designs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FilterDesign, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return models.FilterDesign{}, err
		}

		var d models.FilterDesign
		err := json.Unmarshal(raw, &d)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning filters: %w", err)
	}

	return designs, nil
}
