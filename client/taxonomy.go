package client

import (
	"context"
	"net/http"
	"net/url"
)

// TaxonomyService handles widgets and their trees.
type TaxonomyService struct {
	c *Client
}

func taxonomyPath(widgetID string) string {
	return "/api/v1/widgets/" + url.PathEscape(widgetID) + "/taxonomy"
}

// Widgets lists the configured widgets.
func (s *TaxonomyService) Widgets(ctx context.Context) ([]Widget, error) {
	var resp struct {
		Widgets []Widget `json:"widgets"`
	}
	if err := s.c.do(ctx, http.MethodGet, "/api/v1/widgets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Widgets, nil
}

// Build aggregates the widget's datastore table into a fresh tree.
func (s *TaxonomyService) Build(ctx context.Context, widgetID string) (*Taxonomy, error) {
	var t Taxonomy
	if err := s.c.do(ctx, http.MethodPost, taxonomyPath(widgetID), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// BuildFrom aggregates the given records instead of the datastore.
func (s *TaxonomyService) BuildFrom(ctx context.Context, widgetID string, records []map[string]any) (*Taxonomy, error) {
	body := map[string]any{"records": records}

	var t Taxonomy
	if err := s.c.do(ctx, http.MethodPost, taxonomyPath(widgetID), body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns the widget's cached tree.
func (s *TaxonomyService) Get(ctx context.Context, widgetID string) (*Taxonomy, error) {
	var t Taxonomy
	if err := s.c.do(ctx, http.MethodGet, taxonomyPath(widgetID), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Toggle checks or unchecks a node and returns the resulting exchange.
func (s *TaxonomyService) Toggle(ctx context.Context, widgetID string, req Toggle) (*ToggleResult, error) {
	var res ToggleResult
	if err := s.c.do(ctx, http.MethodPost, taxonomyPath(widgetID)+"/toggle", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
