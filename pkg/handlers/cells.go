package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/models"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
)

// CellMetricsResponse for GET /api/cells/{cellID}/metrics
type CellMetricsResponse struct {
	models.CellMetrics
	AtCapacity bool `json:"at_capacity"`
}

// GroupableOperationsResponse for GET /api/cells/{cellID}/groupable-operations
type GroupableOperationsResponse struct {
	Groups []models.MaterialGroup `json:"groups"`
	Total  int                    `json:"total"`
}

// CellsHandler handles cell capacity and grouping HTTP requests.
type CellsHandler struct {
	capacityService services.CapacityService
	batchService    services.BatchService
	logger          *zap.Logger
}

// NewCellsHandler creates a new cells handler.
func NewCellsHandler(capacityService services.CapacityService, batchService services.BatchService, logger *zap.Logger) *CellsHandler {
	return &CellsHandler{
		capacityService: capacityService,
		batchService:    batchService,
		logger:          logger,
	}
}

// RegisterRoutes registers the cells handler's routes on the given mux.
func (h *CellsHandler) RegisterRoutes(mux *http.ServeMux, tenant TenantMiddleware) {
	mux.HandleFunc("GET /api/cells/{cellID}/metrics", tenant(h.Metrics))
	mux.HandleFunc("GET /api/cells/{cellID}/next-capacity", tenant(h.NextCapacity))
	mux.HandleFunc("GET /api/cells/{cellID}/groupable-operations", tenant(h.GroupableOperations))
}

// Metrics handles GET /api/cells/{cellID}/metrics
func (h *CellsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	cellID, ok := ParseCellID(w, r, h.logger)
	if !ok {
		return
	}

	metrics, err := h.capacityService.GetCellMetrics(r.Context(), tenantID, cellID)
	if err != nil {
		h.logger.Error("Failed to compute cell metrics",
			zap.String("cell_id", cellID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := CellMetricsResponse{CellMetrics: *metrics, AtCapacity: metrics.AtCapacity()}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// NextCapacity handles GET /api/cells/{cellID}/next-capacity
func (h *CellsHandler) NextCapacity(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	cellID, ok := ParseCellID(w, r, h.logger)
	if !ok {
		return
	}

	capacity, err := h.capacityService.CheckNextCellCapacity(r.Context(), tenantID, cellID)
	if err != nil {
		h.logger.Error("Failed to check next cell capacity",
			zap.String("cell_id", cellID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, capacity); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GroupableOperations handles GET /api/cells/{cellID}/groupable-operations
func (h *CellsHandler) GroupableOperations(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	cellID, ok := ParseCellID(w, r, h.logger)
	if !ok {
		return
	}

	groups, err := h.batchService.GetGroupableOperations(r.Context(), tenantID, cellID)
	if err != nil {
		h.logger.Error("Failed to list groupable operations",
			zap.String("cell_id", cellID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	total := 0
	for _, g := range groups {
		total += len(g.Operations)
	}
	response := GroupableOperationsResponse{Groups: groups, Total: total}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
