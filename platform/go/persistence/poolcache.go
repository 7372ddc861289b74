package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownTenant is returned when a tenant id does not resolve to any
// registry entry. Callers must treat this as a client error, distinct from
// transient connection failures.
var ErrUnknownTenant = errors.New("unknown tenant")

// SchemaLookup resolves a tenant id to its schema name.
// Implemented by RegistryStore; substituted with fakes in tests.
type SchemaLookup interface {
	SchemaName(ctx context.Context, tenantID string) (string, error)
}

// PoolBuilder constructs a connection pool scoped to the given schema.
type PoolBuilder func(ctx context.Context, schemaName string) (*pgxpool.Pool, error)

// PoolCache maps tenant ids to live connection pools scoped to their schemas.
// Pools are created lazily on first access and held for the process lifetime;
// the cache exclusively owns their lifecycle. It is an injected component, not
// a package global, so tests can assert single-construction per tenant.
type PoolCache struct {
	lookup SchemaLookup
	build  PoolBuilder

	mu    sync.RWMutex
	pools map[string]*pgxpool.Pool
	group singleflight.Group
}

// NewPoolCache constructs a PoolCache.
func NewPoolCache(lookup SchemaLookup, build PoolBuilder) *PoolCache {
	if lookup == nil {
		panic("pool cache requires a schema lookup")
	}
	if build == nil {
		panic("pool cache requires a pool builder")
	}
	return &PoolCache{
		lookup: lookup,
		build:  build,
		pools:  make(map[string]*pgxpool.Pool),
	}
}

// DefaultPoolBuilder returns a PoolBuilder that opens pgx pools against the
// shared server with the connection-default search_path set to the schema.
func DefaultPoolBuilder(cfg PoolConfig) PoolBuilder {
	return func(ctx context.Context, schemaName string) (*pgxpool.Pool, error) {
		return NewTenantPool(ctx, cfg, schemaName)
	}
}

// Get returns the cached pool for the tenant, building and installing it on
// first access. Concurrent first-requests for the same tenant are collapsed:
// exactly one pool is constructed and every caller receives that instance.
func (c *PoolCache) Get(ctx context.Context, tenantID string) (*pgxpool.Pool, error) {
	c.mu.RLock()
	pool, ok := c.pools[tenantID]
	c.mu.RUnlock()
	if ok {
		return pool, nil
	}

	v, err, _ := c.group.Do(tenantID, func() (interface{}, error) {
		// Re-check under the flight: a previous winner may have installed it.
		c.mu.RLock()
		existing, ok := c.pools[tenantID]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		// The flight serves every concurrent caller and the pool outlives the
		// request, so the build must not die with the first caller's context.
		ctx := context.WithoutCancel(ctx)

		schemaName, err := c.lookup.SchemaName(ctx, tenantID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
			}
			return nil, fmt.Errorf("resolve tenant %s: %w", tenantID, err)
		}

		built, err := c.build(ctx, schemaName)
		if err != nil {
			return nil, fmt.Errorf("build pool for tenant %s: %w", tenantID, err)
		}

		c.mu.Lock()
		c.pools[tenantID] = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pgxpool.Pool), nil
}

// Len reports how many tenant pools are currently cached.
func (c *PoolCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pools)
}

// Close shuts down every cached pool. Intended for process shutdown only;
// no per-tenant eviction exists.
func (c *PoolCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, pool := range c.pools {
		pool.Close()
		delete(c.pools, id)
	}
}
