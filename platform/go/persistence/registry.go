package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantsTable is the fully-qualified tenant directory table in the shared registry schema.
const TenantsTable = "registry.tenants"

// Tenant lifecycle statuses. A tenant becomes active only after all
// provisioning DDL has succeeded; failed marks a registered tenant whose
// schema is incomplete and needs manual remediation.
const (
	TenantStatusProvisioning = "provisioning"
	TenantStatusActive       = "active"
	TenantStatusFailed       = "failed"
)

// Sentinel errors surfaced by registry lookups and inserts.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateTenant = errors.New("tenant id already registered")
)

// TenantRecord is one row of the tenant directory.
type TenantRecord struct {
	TenantID        string
	SchemaName      string
	InstitutionName string
	Status          string
	StatusDetail    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RegistryStore provides access to the tenant directory in the shared registry schema.
type RegistryStore struct {
	pool *pgxpool.Pool
}

// NewRegistryStore creates a store; assumes registry migrations already created the table.
func NewRegistryStore(pool *pgxpool.Pool) (*RegistryStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &RegistryStore{pool: pool}, nil
}

// Create inserts the tenant directory row. The primary key on tenant_id is
// the idempotency guard for provisioning: a second insert for the same id
// fails with ErrDuplicateTenant and creates nothing.
func (s *RegistryStore) Create(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	if rec.TenantID == "" {
		return TenantRecord{}, errors.New("tenant id is required")
	}
	if rec.SchemaName == "" {
		return TenantRecord{}, errors.New("schema name is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (tenant_id, schema_name, institution_name, status, status_detail)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING tenant_id, schema_name, institution_name, status, status_detail, created_at, updated_at
    `, TenantsTable)

	row := s.pool.QueryRow(ctx, query,
		rec.TenantID, rec.SchemaName, rec.InstitutionName, rec.Status, rec.StatusDetail,
	)

	out, err := scanTenantRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return TenantRecord{}, fmt.Errorf("%w: %s", ErrDuplicateTenant, rec.TenantID)
		}
		return TenantRecord{}, err
	}
	return out, nil
}

// UpdateStatus flips the tenant lifecycle status, recording an optional detail
// message (e.g. the error that marked the tenant failed).
func (s *RegistryStore) UpdateStatus(ctx context.Context, tenantID, status string, detail *string) error {
	query := fmt.Sprintf(
		"UPDATE %s SET status = $2, status_detail = $3, updated_at = now() WHERE tenant_id = $1",
		TenantsTable,
	)
	tag, err := s.pool.Exec(ctx, query, tenantID, status, detail)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}
	return nil
}

// UpdateInstitutionName changes the display name; the only mutable business field.
func (s *RegistryStore) UpdateInstitutionName(ctx context.Context, tenantID, institutionName string) error {
	query := fmt.Sprintf(
		"UPDATE %s SET institution_name = $2, updated_at = now() WHERE tenant_id = $1",
		TenantsTable,
	)
	tag, err := s.pool.Exec(ctx, query, tenantID, institutionName)
	if err != nil {
		return fmt.Errorf("update institution name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}
	return nil
}

// Get fetches one tenant directory row.
func (s *RegistryStore) Get(ctx context.Context, tenantID string) (TenantRecord, error) {
	query := fmt.Sprintf(`
        SELECT tenant_id, schema_name, institution_name, status, status_detail, created_at, updated_at
        FROM %s WHERE tenant_id = $1
    `, TenantsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, tenantID))
}

// List returns every tenant directory row ordered by creation time.
// The migrator iterates this to bring all schemas up to the current baseline.
func (s *RegistryStore) List(ctx context.Context) ([]TenantRecord, error) {
	query := fmt.Sprintf(`
        SELECT tenant_id, schema_name, institution_name, status, status_detail, created_at, updated_at
        FROM %s ORDER BY created_at
    `, TenantsTable)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TenantRecord
	for rows.Next() {
		rec, err := scanTenantRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SchemaName resolves a tenant id to its schema name. Used by the pool cache
// on first access for a tenant.
func (s *RegistryStore) SchemaName(ctx context.Context, tenantID string) (string, error) {
	query := fmt.Sprintf("SELECT schema_name FROM %s WHERE tenant_id = $1", TenantsTable)
	var schemaName string
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&schemaName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: tenant %s", ErrNotFound, tenantID)
		}
		return "", err
	}
	return schemaName, nil
}

func scanTenantRecord(row pgx.Row) (TenantRecord, error) {
	var rec TenantRecord
	err := row.Scan(
		&rec.TenantID, &rec.SchemaName, &rec.InstitutionName,
		&rec.Status, &rec.StatusDetail, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, ErrNotFound
		}
		return TenantRecord{}, err
	}
	return rec, nil
}
