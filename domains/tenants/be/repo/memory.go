package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/novalearn-io/novalearn/domains/tenants/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]service.Tenant
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]service.Tenant)}
}

// Put stores or replaces a tenant; test seam mirroring what provisioning
// writes through the registry in production.
func (r *MemoryRepository) Put(t service.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.TenantID] = t
}

func (r *MemoryRepository) Get(ctx context.Context, tenantID string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[tenantID]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TenantID < items[j].TenantID })
	return items, nil
}

func (r *MemoryRepository) Rename(ctx context.Context, tenantID, institutionName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[tenantID]
	if !ok {
		return service.ErrNotFound
	}
	t.InstitutionName = institutionName
	t.UpdatedAt = time.Now().UTC()
	r.byID[tenantID] = t
	return nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
