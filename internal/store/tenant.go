package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/neonviz/neon/internal/dbpool"
)

// ErrTenantNotFound is returned when an API key matches no tenant.
var ErrTenantNotFound = errors.New("tenant not found")

// TenantStore handles tenant lookups (API key → tenant ID).
type TenantStore struct {
	Pool *dbpool.Pool
}

// NewTenantStore creates a new TenantStore.
func NewTenantStore(pool *dbpool.Pool) *TenantStore {
	return &TenantStore{Pool: pool}
}

// HashAPIKey returns the stored form of an API key.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// GetTenantByAPIKey looks up a tenant ID by API key hash.
func (s *TenantStore) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var tenantID string

	err := s.Pool.QueryRow(ctx, "SELECT id FROM tenants WHERE api_key_hash = $1", HashAPIKey(apiKey)).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrTenantNotFound
	}

	if err != nil {
		return "", fmt.Errorf("looking up tenant by API key: %w", err)
	}

	return tenantID, nil
}

// CreateTenant registers a tenant and returns its ID and a fresh API key.
// Only the key's hash is stored.
func (s *TenantStore) CreateTenant(ctx context.Context, name string) (tenantID, apiKey string, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating API key: %w", err)
	}

	apiKey = "neon_" + hex.EncodeToString(raw)

	err = s.Pool.QueryRow(ctx,
		"INSERT INTO tenants (name, api_key_hash) VALUES ($1, $2) RETURNING id",
		name, HashAPIKey(apiKey),
	).Scan(&tenantID)
	if err != nil {
		return "", "", fmt.Errorf("creating tenant: %w", err)
	}

	return tenantID, apiKey, nil
}

// LocalTenantID is the tenant every request maps to when authentication is disabled.
const LocalTenantID = "00000000-0000-0000-0000-000000000000"

// EnsureTenant creates the tenant with the given ID if it does not exist. The
// tenant gets an unusable key hash, so no API key resolves to it.
func (s *TenantStore) EnsureTenant(ctx context.Context, tenantID, name string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		"INSERT INTO tenants (id, name, api_key_hash) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING",
		tenantID, name, "disabled:"+tenantID,
	)
	if err != nil {
		return fmt.Errorf("ensuring tenant %s: %w", tenantID, err)
	}

	return nil
}
