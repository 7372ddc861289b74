package tenant

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ctxKey int

const poolKey ctxKey = iota

// WithPool returns a derived context carrying the tenant-scoped pool.
// Middleware attaches it once the tenant has been resolved from claims.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolKey, pool)
}

// PoolFromContext extracts the tenant-scoped pool and a presence flag.
// Handlers query through this pool and never name a schema themselves.
func PoolFromContext(ctx context.Context) (*pgxpool.Pool, bool) {
	pool, ok := ctx.Value(poolKey).(*pgxpool.Pool)
	return pool, ok
}
