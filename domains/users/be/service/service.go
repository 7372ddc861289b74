// Package service implements the global identity operations: admin-driven
// invites, login verification, and deactivation. Identities live in the shared
// registry schema, never in tenant schemas, so one email maps to exactly one
// tenant across the platform.
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
)

// Errors returned by the service layer.
var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

const minPasswordLength = 8

// User is the domain model for a global identity.
type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Role      string
	TenantID  string
	IsActive  bool
	CreatedAt time.Time
}

// CreateInput is an admin invite for a new identity.
type CreateInput struct {
	Email    string
	FullName string
	Role     string
	TenantID string
	Password string
}

// Repository abstracts identity persistence.
type Repository interface {
	Create(ctx context.Context, user User, passwordHash string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, string, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Service provides identity operations.
type Service struct {
	repo Repository
}

// New constructs a Service with required dependencies.
func New(repo Repository) *Service {
	if repo == nil {
		panic("users repo is required")
	}
	return &Service{repo: repo}
}

// Create stores an invited identity with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	if err := validateCreateInput(input); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:       uuid.New(),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		FullName: strings.TrimSpace(input.FullName),
		Role:     input.Role,
		TenantID: input.TenantID,
		IsActive: true,
	}
	return s.repo.Create(ctx, user, string(hash))
}

// Login verifies the password for an active identity. Lookup misses and
// password mismatches are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	user, hash, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns an identity by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.Get(ctx, id)
}

// ListByTenant returns every identity belonging to one tenant.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]User, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// Deactivate soft-deletes an identity; its email stays claimed.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

func validateCreateInput(input CreateInput) error {
	if !strings.Contains(input.Email, "@") {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.FullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	switch input.Role {
	case auth.RoleAdmin, auth.RoleTeacher, auth.RoleStudent:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, input.Role)
	}
	if input.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}
