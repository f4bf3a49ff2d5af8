package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
)

// RoutingResponse for single part/job routing requests.
type RoutingResponse struct {
	Routing []models.RoutingEntry `json:"routing"`
}

// JobsRoutingRequest for POST /api/routing/jobs
type JobsRoutingRequest struct {
	JobIDs []uuid.UUID `json:"job_ids"`
}

// JobsRoutingResponse for POST /api/routing/jobs
type JobsRoutingResponse struct {
	Routing map[uuid.UUID][]models.RoutingEntry `json:"routing"`
}

// RoutingHandler handles routing aggregation HTTP requests.
type RoutingHandler struct {
	routingService services.RoutingService
	logger         *zap.Logger
}

// NewRoutingHandler creates a new routing handler.
func NewRoutingHandler(routingService services.RoutingService, logger *zap.Logger) *RoutingHandler {
	return &RoutingHandler{
		routingService: routingService,
		logger:         logger,
	}
}

// RegisterRoutes registers the routing handler's routes on the given mux.
func (h *RoutingHandler) RegisterRoutes(mux *http.ServeMux, tenant TenantMiddleware) {
	mux.HandleFunc("GET /api/parts/{partID}/routing", tenant(h.PartRouting))
	mux.HandleFunc("GET /api/jobs/{jobID}/routing", tenant(h.JobRouting))
	mux.HandleFunc("POST /api/routing/jobs", tenant(h.JobsRouting))
}

// PartRouting handles GET /api/parts/{partID}/routing
func (h *RoutingHandler) PartRouting(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	partID, ok := ParsePartID(w, r, h.logger)
	if !ok {
		return
	}

	routing, err := h.routingService.GetPartRouting(r.Context(), tenantID, partID)
	if err != nil {
		h.logger.Error("Failed to compute part routing",
			zap.String("part_id", partID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, RoutingResponse{Routing: routing}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// JobRouting handles GET /api/jobs/{jobID}/routing
func (h *RoutingHandler) JobRouting(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	routing, err := h.routingService.GetJobRouting(r.Context(), tenantID, jobID)
	if err != nil {
		h.logger.Error("Failed to compute job routing",
			zap.String("job_id", jobID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, RoutingResponse{Routing: routing}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// JobsRouting handles POST /api/routing/jobs
func (h *RoutingHandler) JobsRouting(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}

	var req JobsRoutingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	routing, err := h.routingService.GetJobsRouting(r.Context(), tenantID, req.JobIDs)
	if err != nil {
		h.logger.Error("Failed to compute jobs routing",
			zap.Int("jobs", len(req.JobIDs)),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, JobsRoutingResponse{Routing: routing}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
