package api_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/neonviz/neon/internal/api"
	"github.com/neonviz/neon/internal/models"
)

func TestRecordIngest(t *testing.T) {
	t.Parallel()

	var gotDatastore, gotTable string
	svc := &mockRecords{
		ingestFn: func(_ context.Context, _, datastore, table string, records []models.Record) (*models.IngestResult, error) {
			gotDatastore, gotTable = datastore, table
			return &models.IngestResult{Datastore: datastore, Table: table, Inserted: len(records)}, nil
		},
	}

	r := newTestRouter()
	h := api.NewRecordHandler(svc, testLogger())
	r.POST("/datastores/:datastore/:table/records", h.Ingest)

	w := doRequest(r, http.MethodPost, "/datastores/ds/docs/records", `{"records":[{"id":"1","category":"Books"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	if gotDatastore != "ds" || gotTable != "docs" {
		t.Errorf("unexpected target %s.%s", gotDatastore, gotTable)
	}

	if !strings.Contains(w.Body.String(), `"inserted":1`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestRecordIngest_Empty(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewRecordHandler(&mockRecords{}, testLogger())
	r.POST("/datastores/:datastore/:table/records", h.Ingest)

	w := doRequest(r, http.MethodPost, "/datastores/ds/docs/records", `{"records":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
