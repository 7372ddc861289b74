// Package repo provides tenant directory repositories: a Postgres-backed one
// for production and an in-memory one for tests.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/novalearn-io/novalearn/domains/tenants/be/service"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

// PostgresRepository adapts the shared registry store to the tenants domain.
type PostgresRepository struct {
	store *persistence.RegistryStore
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(store *persistence.RegistryStore) *PostgresRepository {
	if store == nil {
		panic("registry store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID string) (service.Tenant, error) {
	rec, err := r.store.Get(ctx, tenantID)
	if err != nil {
		return service.Tenant{}, mapStoreError(err)
	}
	return toDomain(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]service.Tenant, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	tenants := make([]service.Tenant, 0, len(recs))
	for _, rec := range recs {
		tenants = append(tenants, toDomain(rec))
	}
	return tenants, nil
}

func (r *PostgresRepository) Rename(ctx context.Context, tenantID, institutionName string) error {
	if err := r.store.UpdateInstitutionName(ctx, tenantID, institutionName); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func toDomain(rec persistence.TenantRecord) service.Tenant {
	return service.Tenant{
		TenantID:        rec.TenantID,
		SchemaName:      rec.SchemaName,
		InstitutionName: rec.InstitutionName,
		Status:          rec.Status,
		StatusDetail:    rec.StatusDetail,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return service.ErrNotFound
	}
	return err
}

var _ service.Repository = (*PostgresRepository)(nil)
