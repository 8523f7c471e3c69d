package filter

import (
	"context"
	"sync"

	"github.com/neonviz/neon/internal/models"
)

// MemoryStore keeps designs in process memory. It is the default backend.
type MemoryStore struct {
	mu      sync.Mutex
	tenants map[string][]models.FilterDesign
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string][]models.FilterDesign)}
}

// Load returns a copy of the tenant's designs.
func (s *MemoryStore) Load(_ context.Context, tenantID string) ([]models.FilterDesign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return clone(s.tenants[tenantID]), nil
}

// Update applies fn under the store lock.
func (s *MemoryStore) Update(
	_ context.Context,
	tenantID string,
	fn func([]models.FilterDesign) []models.FilterDesign,
) ([]models.FilterDesign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(fn(clone(s.tenants[tenantID])))
	if len(next) == 0 {
		delete(s.tenants, tenantID)
		return nil, nil
	}

	s.tenants[tenantID] = next

	return clone(next), nil
}

func clone(designs []models.FilterDesign) []models.FilterDesign {
	if len(designs) == 0 {
		return nil
	}

	out := make([]models.FilterDesign, len(designs))
	for i, d := range designs {
		d.Values = append([]models.FilterValue(nil), d.Values...)
		out[i] = d
	}

	return out
}
