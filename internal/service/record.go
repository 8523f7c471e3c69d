package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/domain"
	"github.com/neonviz/neon/internal/models"
)

// Compile-time check: *RecordService must satisfy domain.RecordService.
var _ domain.RecordService = (*RecordService)(nil)

// RecordInserter appends records to a datastore table.
type RecordInserter interface {
	InsertRecords(ctx context.Context, tenantID, datastore, table string, records []models.Record) (int, error)
}

// Invalidator is told when a table's contents change.
type Invalidator interface {
	Invalidate(tenantID, datastore, table string)
}

// RecordService loads records into datastore tables and marks the trees
// built over them stale.
type RecordService struct {
	store       RecordInserter
	invalidator Invalidator
	log         *logrus.Logger
}

// NewRecordService creates a RecordService. invalidator may be nil.
func NewRecordService(store RecordInserter, invalidator Invalidator, log *logrus.Logger) *RecordService {
	return &RecordService{store: store, invalidator: invalidator, log: log}
}

// IngestRecords stores records in datastore.table.
func (s *RecordService) IngestRecords(
	ctx context.Context, tenantID, datastore, table string, records []models.Record,
) (*models.IngestResult, error) {
	n, err := s.store.InsertRecords(ctx, tenantID, datastore, table, records)
	if err != nil {
		return nil, err
	}

	if s.invalidator != nil && n > 0 {
		s.invalidator.Invalidate(tenantID, datastore, table)
	}

	s.log.WithFields(logrus.Fields{
		"action":    "records.ingest",
		"tenant_id": tenantID,
		"datastore": datastore,
		"table":     table,
		"inserted":  n,
	}).Info("records ingested")

	return &models.IngestResult{Datastore: datastore, Table: table, Inserted: n}, nil
}
