package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
)

// TenantMiddleware wraps a handler with tenant resolution and a tenant-scoped
// database connection for the request.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// ParseCellID extracts and validates the cell ID from the request path.
// Expects path parameter: cellID
func ParseCellID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "cellID", "invalid_cell_id", "Invalid cell ID format", logger)
}

// ParsePartID extracts and validates the part ID from the request path.
// Expects path parameter: partID
func ParsePartID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "partID", "invalid_part_id", "Invalid part ID format", logger)
}

// ParseJobID extracts and validates the job ID from the request path.
// Expects path parameter: jobID
func ParseJobID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "jobID", "invalid_job_id", "Invalid job ID format", logger)
}

// ParseBatchID extracts and validates the batch ID from the request path.
// Expects path parameter: batchID
func ParseBatchID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "batchID", "invalid_batch_id", "Invalid batch ID format", logger)
}

// ParseOperationID extracts and validates the operation ID from the request
// path. Expects path parameter: operationID
func ParseOperationID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "operationID", "invalid_operation_id", "Invalid operation ID format", logger)
}

// requestTenant returns the tenant the request is scoped to. The tenant
// middleware is responsible for putting it there; a missing tenant means the
// route was registered without the middleware.
func requestTenant(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	tenantID, ok := database.GetTenantID(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "missing_tenant", "No tenant in request context"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return tenantID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
