package client

import (
	"context"
	"net/http"
	"net/url"
)

// RecordService loads records into datastore tables.
type RecordService struct {
	c *Client
}

// Ingest appends records to datastore.table.
func (s *RecordService) Ingest(ctx context.Context, datastore, table string, records []map[string]any) (*IngestResult, error) {
	path := "/api/v1/datastores/" + url.PathEscape(datastore) + "/" + url.PathEscape(table) + "/records"

	var res IngestResult
	if err := s.c.do(ctx, http.MethodPost, path, map[string]any{"records": records}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
