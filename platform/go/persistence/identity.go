package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentitiesTable is the fully-qualified global identity table in the shared registry schema.
const IdentitiesTable = "registry.identities"

// ErrDuplicateEmail is returned when an email is already registered, for any tenant.
var ErrDuplicateEmail = errors.New("email already registered")

// IdentityRecord is one global user account. Identities live in the registry,
// not in a tenant schema, so an email is unique across all institutions.
type IdentityRecord struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	TenantID     string
	IsActive     bool
	CreatedAt    time.Time
}

// IdentityStore provides access to the global identity table.
type IdentityStore struct {
	pool *pgxpool.Pool
}

// NewIdentityStore creates a store; assumes registry migrations already created the table.
func NewIdentityStore(pool *pgxpool.Pool) (*IdentityStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &IdentityStore{pool: pool}, nil
}

// Create inserts a new identity. Role is immutable after this point.
func (s *IdentityStore) Create(ctx context.Context, rec IdentityRecord) (IdentityRecord, error) {
	if rec.ID == uuid.Nil {
		return IdentityRecord{}, errors.New("identity id is required")
	}
	if rec.Email == "" {
		return IdentityRecord{}, errors.New("email is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (id, email, password_hash, full_name, role, tenant_id, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE)
        RETURNING id, email, password_hash, full_name, role, tenant_id, is_active, created_at
    `, IdentitiesTable)

	row := s.pool.QueryRow(ctx, query,
		rec.ID, strings.ToLower(rec.Email), rec.PasswordHash, rec.FullName, rec.Role, rec.TenantID,
	)

	out, err := scanIdentityRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.EqualFold(pgErr.ConstraintName, "identities_email_unique") {
			return IdentityRecord{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, rec.Email)
		}
		return IdentityRecord{}, err
	}
	return out, nil
}

// GetByEmail fetches an active identity by email.
func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (IdentityRecord, error) {
	query := fmt.Sprintf(`
        SELECT id, email, password_hash, full_name, role, tenant_id, is_active, created_at
        FROM %s WHERE email = $1 AND is_active = TRUE
    `, IdentitiesTable)
	return scanIdentityRecord(s.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

// Get fetches an identity by id regardless of active flag.
func (s *IdentityStore) Get(ctx context.Context, id uuid.UUID) (IdentityRecord, error) {
	query := fmt.Sprintf(`
        SELECT id, email, password_hash, full_name, role, tenant_id, is_active, created_at
        FROM %s WHERE id = $1
    `, IdentitiesTable)
	return scanIdentityRecord(s.pool.QueryRow(ctx, query, id))
}

// ListByTenant returns active identities belonging to one tenant.
func (s *IdentityStore) ListByTenant(ctx context.Context, tenantID string) ([]IdentityRecord, error) {
	query := fmt.Sprintf(`
        SELECT id, email, password_hash, full_name, role, tenant_id, is_active, created_at
        FROM %s WHERE tenant_id = $1 AND is_active = TRUE ORDER BY created_at
    `, IdentitiesTable)

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []IdentityRecord
	for rows.Next() {
		rec, err := scanIdentityRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Deactivate soft-deletes an identity. Identities are never hard-deleted.
func (s *IdentityStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf("UPDATE %s SET is_active = FALSE WHERE id = $1", IdentitiesTable)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: identity %s", ErrNotFound, id)
	}
	return nil
}

func scanIdentityRecord(row pgx.Row) (IdentityRecord, error) {
	var rec IdentityRecord
	err := row.Scan(
		&rec.ID, &rec.Email, &rec.PasswordHash, &rec.FullName,
		&rec.Role, &rec.TenantID, &rec.IsActive, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IdentityRecord{}, ErrNotFound
		}
		return IdentityRecord{}, err
	}
	return rec, nil
}
