package client

import (
	"context"
	"net/http"
)

// FilterService handles the tenant's active filter designs.
type FilterService struct {
	c *Client
}

type filterListResponse struct {
	Filters []FilterDesign `json:"filters"`
}

// List returns the active filter designs.
func (s *FilterService) List(ctx context.Context) ([]FilterDesign, error) {
	var resp filterListResponse
	if err := s.c.do(ctx, http.MethodGet, "/api/v1/filters", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Filters, nil
}

// Exchange applies deletes and sets in one step and returns the active designs.
func (s *FilterService) Exchange(ctx context.Context, req Exchange) ([]FilterDesign, error) {
	var resp filterListResponse
	if err := s.c.do(ctx, http.MethodPost, "/api/v1/filters/exchange", req, &resp); err != nil {
		return nil, err
	}
	return resp.Filters, nil
}

// Clear removes every design and returns how many were deleted.
func (s *FilterService) Clear(ctx context.Context) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := s.c.do(ctx, http.MethodDelete, "/api/v1/filters", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}
