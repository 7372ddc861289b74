// Package provisioning creates and evolves the per-tenant database schemas.
// The schema name derived from the tenant id is a durable contract: once a
// tenant is provisioned, every later lookup derives the same name.
package provisioning

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	sqlassets "github.com/novalearn-io/novalearn/database"
	"github.com/novalearn-io/novalearn/domains/tenants/be/service"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
	"github.com/novalearn-io/novalearn/platform/go/tenant"
)

// Registry is the slice of the tenant directory the provisioner needs.
// Implemented by persistence.RegistryStore.
type Registry interface {
	Create(ctx context.Context, rec persistence.TenantRecord) (persistence.TenantRecord, error)
	UpdateStatus(ctx context.Context, tenantID, status string, detail *string) error
}

// SchemaProvisioner registers a tenant and builds its dedicated schema.
type SchemaProvisioner struct {
	pool     *pgxpool.Pool
	registry Registry
	logger   *zap.Logger
}

func NewSchemaProvisioner(pool *pgxpool.Pool, registry Registry, logger *zap.Logger) *SchemaProvisioner {
	if pool == nil {
		panic("schema provisioner requires pool")
	}
	if registry == nil {
		panic("schema provisioner requires registry")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaProvisioner{pool: pool, registry: registry, logger: logger}
}

// Provision validates the tenant id, claims it in the registry, and builds the
// tenant schema with its baseline tables, indexes and role seeds. The registry
// insert is the idempotency guard: a second call for the same id fails with
// persistence.ErrDuplicateTenant before any DDL runs. DDL failures flip the
// registry row to failed with the error recorded, so operators can retry or
// clean up out of band.
func (p *SchemaProvisioner) Provision(ctx context.Context, tenantID, institutionName string) (service.ProvisionResult, error) {
	schemaName, err := tenant.SchemaName(tenantID)
	if err != nil {
		return service.ProvisionResult{}, err
	}

	if _, err := p.registry.Create(ctx, persistence.TenantRecord{
		TenantID:        tenantID,
		SchemaName:      schemaName,
		InstitutionName: institutionName,
		Status:          persistence.TenantStatusProvisioning,
	}); err != nil {
		return service.ProvisionResult{}, fmt.Errorf("register tenant %s: %w", tenantID, err)
	}

	if err := p.buildSchema(ctx, schemaName); err != nil {
		detail := err.Error()
		if stErr := p.registry.UpdateStatus(ctx, tenantID, persistence.TenantStatusFailed, &detail); stErr != nil {
			p.logger.Error("record provisioning failure",
				zap.String("tenant_id", tenantID), zap.Error(stErr))
		}
		p.logger.Error("tenant provisioning failed",
			zap.String("tenant_id", tenantID),
			zap.String("schema", schemaName),
			zap.Error(err))
		return service.ProvisionResult{}, fmt.Errorf("provision tenant %s: %w", tenantID, err)
	}

	if err := p.registry.UpdateStatus(ctx, tenantID, persistence.TenantStatusActive, nil); err != nil {
		return service.ProvisionResult{}, fmt.Errorf("activate tenant %s: %w", tenantID, err)
	}

	p.logger.Info("tenant provisioned",
		zap.String("tenant_id", tenantID),
		zap.String("schema", schemaName))

	return service.ProvisionResult{TenantID: tenantID, SchemaName: schemaName}, nil
}

// buildSchema runs the schema DDL in a single transaction. Every statement in
// the baseline carries IF NOT EXISTS / ON CONFLICT guards, so re-application
// against a half-built schema is harmless.
func (p *SchemaProvisioner) buildSchema(ctx context.Context, schemaName string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	createSchema := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schemaName}.Sanitize())
	if _, err := tx.Exec(ctx, createSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Scope unqualified DDL to the tenant schema for this transaction only.
	if _, err := tx.Exec(ctx, "SELECT set_config('search_path', $1, true)", schemaName); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, asset := range sqlassets.TenantBaseline() {
		if _, err := tx.Exec(ctx, asset.SQL); err != nil {
			return fmt.Errorf("apply %s: %w", asset.Name, err)
		}
	}

	// Bring the fresh schema to the current shape immediately; the fleet
	// migrator only has to catch up tenants provisioned before a step shipped.
	for _, s := range catalog() {
		done, err := s.applied(ctx, tx, schemaName)
		if err != nil {
			return fmt.Errorf("step %s: check: %w", s.name, err)
		}
		if done {
			continue
		}
		if err := s.apply(ctx, tx, schemaName); err != nil {
			return fmt.Errorf("step %s: %w", s.name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var _ service.SchemaProvisioner = (*SchemaProvisioner)(nil)
