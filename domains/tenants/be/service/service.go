// Package service holds the tenant registry domain logic: registration of
// new institutions, lookups, and renames. Schema construction is delegated
// to the provisioning package through the SchemaProvisioner interface.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/novalearn-io/novalearn/platform/go/auth"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
	"github.com/novalearn-io/novalearn/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound        = errors.New("tenant not found")
	ErrDuplicateTenant = errors.New("tenant already exists")
	ErrInvalidTenantID = errors.New("invalid tenant id")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrInvalidInput    = errors.New("invalid input")
)

const minPasswordLength = 8

// Tenant is the domain model for a tenant registry entry.
type Tenant struct {
	TenantID        string
	SchemaName      string
	InstitutionName string
	Status          string
	StatusDetail    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProvisionResult reports the schema built for a new tenant.
type ProvisionResult struct {
	TenantID   string
	SchemaName string
}

// RegisterInput is the self-service institution signup payload.
type RegisterInput struct {
	TenantID        string
	InstitutionName string
	AdminEmail      string
	AdminFullName   string
	AdminPassword   string
}

// RegisterResult is returned once the tenant schema exists and the first
// administrator identity is stored.
type RegisterResult struct {
	Tenant  Tenant
	AdminID uuid.UUID
}

// Repository abstracts the tenant directory reads and renames the service
// needs; creation goes through the provisioner.
type Repository interface {
	Get(ctx context.Context, tenantID string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Rename(ctx context.Context, tenantID, institutionName string) error
}

// SchemaProvisioner registers a tenant and builds its dedicated schema.
type SchemaProvisioner interface {
	Provision(ctx context.Context, tenantID, institutionName string) (ProvisionResult, error)
}

// Identities is the slice of the global identity store used during
// registration.
type Identities interface {
	Create(ctx context.Context, rec persistence.IdentityRecord) (persistence.IdentityRecord, error)
}

// Service provides tenant registry operations.
type Service struct {
	repo        Repository
	provisioner SchemaProvisioner
	identities  Identities
}

// New constructs a Service with required dependencies.
func New(repo Repository, provisioner SchemaProvisioner, identities Identities) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if provisioner == nil {
		panic("schema provisioner is required")
	}
	if identities == nil {
		panic("identity store is required")
	}
	return &Service{repo: repo, provisioner: provisioner, identities: identities}
}

// Register provisions the institution's schema and creates its first
// administrator. Provisioning is the idempotency guard: a second registration
// with the same tenant id fails with ErrDuplicateTenant and changes nothing.
// Identity creation rolls forward only; if it fails the tenant stays active
// and the admin can be re-invited out of band.
func (s *Service) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	if err := validateRegisterInput(input); err != nil {
		return RegisterResult{}, err
	}

	res, err := s.provisioner.Provision(ctx, input.TenantID, strings.TrimSpace(input.InstitutionName))
	if err != nil {
		return RegisterResult{}, mapProvisionError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash admin password: %w", err)
	}

	admin, err := s.identities.Create(ctx, persistence.IdentityRecord{
		ID:           uuid.New(),
		Email:        input.AdminEmail,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(input.AdminFullName),
		Role:         auth.RoleAdmin,
		TenantID:     res.TenantID,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicateEmail) {
			return RegisterResult{}, fmt.Errorf("create admin for %s: %w", res.TenantID, ErrDuplicateEmail)
		}
		return RegisterResult{}, fmt.Errorf("create admin for %s: %w", res.TenantID, err)
	}

	t, err := s.repo.Get(ctx, res.TenantID)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("load registered tenant: %w", err)
	}

	return RegisterResult{Tenant: t, AdminID: admin.ID}, nil
}

// Get returns a tenant by id.
func (s *Service) Get(ctx context.Context, tenantID string) (Tenant, error) {
	if err := tenant.ValidateID(tenantID); err != nil {
		return Tenant{}, fmt.Errorf("%w: %s", ErrInvalidTenantID, tenantID)
	}
	return s.repo.Get(ctx, tenantID)
}

// List returns every registered tenant.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}

// Rename updates the institution display name. The tenant id and schema name
// never change; they are the durable contract everything else hangs off.
func (s *Service) Rename(ctx context.Context, tenantID, institutionName string) (Tenant, error) {
	if err := tenant.ValidateID(tenantID); err != nil {
		return Tenant{}, fmt.Errorf("%w: %s", ErrInvalidTenantID, tenantID)
	}
	institutionName = strings.TrimSpace(institutionName)
	if institutionName == "" {
		return Tenant{}, fmt.Errorf("%w: institution name is required", ErrInvalidInput)
	}
	if err := s.repo.Rename(ctx, tenantID, institutionName); err != nil {
		return Tenant{}, err
	}
	return s.repo.Get(ctx, tenantID)
}

func validateRegisterInput(input RegisterInput) error {
	if err := tenant.ValidateID(input.TenantID); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTenantID, input.TenantID)
	}
	if strings.TrimSpace(input.InstitutionName) == "" {
		return fmt.Errorf("%w: institution name is required", ErrInvalidInput)
	}
	if !strings.Contains(input.AdminEmail, "@") {
		return fmt.Errorf("%w: admin email is required", ErrInvalidInput)
	}
	if len(input.AdminPassword) < minPasswordLength {
		return fmt.Errorf("%w: admin password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}

func mapProvisionError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrDuplicateTenant):
		return fmt.Errorf("%w", ErrDuplicateTenant)
	case errors.Is(err, tenant.ErrInvalidID):
		return fmt.Errorf("%w", ErrInvalidTenantID)
	default:
		return err
	}
}
