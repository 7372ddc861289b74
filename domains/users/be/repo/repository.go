// Package repo provides identity repositories backed by the shared registry
// store, plus an in-memory implementation for tests.
package repo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novalearn-io/novalearn/domains/users/be/service"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
)

// PostgresRepository adapts the shared identity store to the users domain.
type PostgresRepository struct {
	store *persistence.IdentityStore
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(store *persistence.IdentityStore) *PostgresRepository {
	if store == nil {
		panic("identity store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, user service.User, passwordHash string) (service.User, error) {
	rec, err := r.store.Create(ctx, persistence.IdentityRecord{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: passwordHash,
		FullName:     user.FullName,
		Role:         user.Role,
		TenantID:     user.TenantID,
	})
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return toDomain(rec), nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (service.User, string, error) {
	rec, err := r.store.GetByEmail(ctx, email)
	if err != nil {
		return service.User{}, "", mapStoreError(err)
	}
	return toDomain(rec), rec.PasswordHash, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.User, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return toDomain(rec), nil
}

func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID string) ([]service.User, error) {
	recs, err := r.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	users := make([]service.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, toDomain(rec))
	}
	return users, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Deactivate(ctx, id); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func toDomain(rec persistence.IdentityRecord) service.User {
	return service.User{
		ID:        rec.ID,
		Email:     rec.Email,
		FullName:  rec.FullName,
		Role:      rec.Role,
		TenantID:  rec.TenantID,
		IsActive:  rec.IsActive,
		CreatedAt: rec.CreatedAt,
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicateEmail):
		return service.ErrDuplicateEmail
	default:
		return err
	}
}

var _ service.Repository = (*PostgresRepository)(nil)

// MemoryRepository is a simple in-memory implementation suitable for tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]service.User
	hashes  map[uuid.UUID]string
	byEmail map[string]uuid.UUID
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]service.User),
		hashes:  make(map[uuid.UUID]string),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, user service.User, passwordHash string) (service.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return service.User{}, service.ErrDuplicateEmail
	}
	user.CreatedAt = time.Now().UTC()
	r.byID[user.ID] = user
	r.hashes[user.ID] = passwordHash
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (service.User, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return service.User{}, "", service.ErrNotFound
	}
	user := r.byID[id]
	if !user.IsActive {
		return service.User{}, "", service.ErrNotFound
	}
	return user, r.hashes[id], nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return service.User{}, service.ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepository) ListByTenant(ctx context.Context, tenantID string) ([]service.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]service.User, 0)
	for _, user := range r.byID {
		if user.TenantID == tenantID {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (r *MemoryRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return service.ErrNotFound
	}
	user.IsActive = false
	r.byID[id] = user
	return nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
