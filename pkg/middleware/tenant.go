package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/handlers"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
)

// TenantHeader identifies the tenant on every API request. The upstream
// gateway authenticates the caller and stamps this header; the engine trusts
// it the way it trusts the network.
const TenantHeader = "X-Tenant-ID"

// NewTenantMiddleware returns middleware that resolves the tenant from the
// request header and acquires a tenant-scoped database connection for the
// duration of the request.
func NewTenantMiddleware(tenantContext services.TenantContextFunc, logger *zap.Logger) handlers.TenantMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(TenantHeader)
			if raw == "" {
				if err := handlers.ErrorResponse(w, http.StatusUnauthorized,
					"missing_tenant", "Missing "+TenantHeader+" header"); err != nil {
					logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}

			tenantID, err := uuid.Parse(raw)
			if err != nil {
				if err := handlers.ErrorResponse(w, http.StatusUnauthorized,
					"invalid_tenant", "Invalid "+TenantHeader+" header"); err != nil {
					logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}

			ctx, cleanup, err := tenantContext(r.Context(), tenantID)
			if err != nil {
				logger.Error("Failed to acquire tenant scope",
					zap.String("tenant_id", tenantID.String()),
					zap.Error(err))
				if err := handlers.ErrorResponse(w, http.StatusServiceUnavailable,
					"tenant_scope_unavailable", "Could not acquire a tenant database connection"); err != nil {
					logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}
			defer cleanup()

			next(w, r.WithContext(ctx))
		}
	}
}
