// Package middleware attaches the tenant-scoped database pool to each
// authenticated request. It is the last line of defense for schema isolation:
// if resolution fails, the request is rejected before any handler that could
// otherwise query across tenant boundaries.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/novalearn-io/novalearn/platform/go/auth"
	"github.com/novalearn-io/novalearn/platform/go/logging"
	"github.com/novalearn-io/novalearn/platform/go/persistence"
	"github.com/novalearn-io/novalearn/platform/go/tenant"
)

// Pools supplies the tenant-scoped pool for a tenant id.
// Implemented by persistence.PoolCache; substituted with fakes in tests.
type Pools interface {
	Get(ctx context.Context, tenantID string) (*pgxpool.Pool, error)
}

// WithTenantPool resolves the caller's tenant from the verified identity
// claim and attaches the tenant-scoped pool to the request context. The
// tenant claim is trusted completely; the authentication layer already
// guaranteed membership when it issued the token.
func WithTenantPool(pools Pools, fallback *zap.Logger) func(http.Handler) http.Handler {
	if pools == nil {
		panic("tenant middleware: pool source is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok || id == nil || id.TenantID == "" {
				http.Error(w, "tenant required", http.StatusUnauthorized)
				return
			}

			pool, err := pools.Get(r.Context(), id.TenantID)
			if err != nil {
				logger := logging.FromRequest(r, fallback)
				if errors.Is(err, persistence.ErrUnknownTenant) {
					logger.Warn("request for unknown tenant", zap.String("tenant_id", id.TenantID))
					http.Error(w, "tenant not found", http.StatusNotFound)
					return
				}
				logger.Error("tenant pool resolution failed", zap.String("tenant_id", id.TenantID), zap.Error(err))
				http.Error(w, "tenant backend unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(tenant.WithPool(r.Context(), pool)))
		})
	}
}
