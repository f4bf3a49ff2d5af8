package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
)

// TimingRequest for start-timing and stop-timing.
type TimingRequest struct {
	OperatorID string `json:"operator_id"`
}

// TimeclockHandler handles operator time tracking HTTP requests.
type TimeclockHandler struct {
	timeclockService services.TimeclockService
	logger           *zap.Logger
}

// NewTimeclockHandler creates a new timeclock handler.
func NewTimeclockHandler(timeclockService services.TimeclockService, logger *zap.Logger) *TimeclockHandler {
	return &TimeclockHandler{
		timeclockService: timeclockService,
		logger:           logger,
	}
}

// RegisterRoutes registers the timeclock handler's routes on the given mux.
func (h *TimeclockHandler) RegisterRoutes(mux *http.ServeMux, tenant TenantMiddleware) {
	mux.HandleFunc("POST /api/operations/{operationID}/start-timing", tenant(h.StartTiming))
	mux.HandleFunc("POST /api/operations/{operationID}/stop-timing", tenant(h.StopTiming))
	mux.HandleFunc("POST /api/operations/{operationID}/complete", tenant(h.Complete))
	mux.HandleFunc("GET /api/operators/{operatorID}/active-entry", tenant(h.ActiveEntry))
}

// StartTiming handles POST /api/operations/{operationID}/start-timing
func (h *TimeclockHandler) StartTiming(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	operationID, ok := ParseOperationID(w, r, h.logger)
	if !ok {
		return
	}

	var req TimingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	entry, err := h.timeclockService.StartTiming(r.Context(), tenantID, operationID, req.OperatorID)
	if err != nil {
		h.logger.Error("Failed to start timing",
			zap.String("operation_id", operationID.String()),
			zap.String("operator_id", req.OperatorID),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, entry); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// StopTiming handles POST /api/operations/{operationID}/stop-timing
func (h *TimeclockHandler) StopTiming(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	operationID, ok := ParseOperationID(w, r, h.logger)
	if !ok {
		return
	}

	var req TimingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	entry, err := h.timeclockService.StopTiming(r.Context(), tenantID, operationID, req.OperatorID)
	if err != nil {
		h.logger.Error("Failed to stop timing",
			zap.String("operation_id", operationID.String()),
			zap.String("operator_id", req.OperatorID),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, entry); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Complete handles POST /api/operations/{operationID}/complete
func (h *TimeclockHandler) Complete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	operationID, ok := ParseOperationID(w, r, h.logger)
	if !ok {
		return
	}

	op, err := h.timeclockService.CompleteOperation(r.Context(), tenantID, operationID)
	if err != nil {
		h.logger.Error("Failed to complete operation",
			zap.String("operation_id", operationID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, op); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ActiveEntry handles GET /api/operators/{operatorID}/active-entry
func (h *TimeclockHandler) ActiveEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	operatorID := r.PathValue("operatorID")
	if operatorID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_operator_id", "Operator ID is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	entry, err := h.timeclockService.GetActiveEntry(r.Context(), tenantID, operatorID)
	if err != nil {
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, entry); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
