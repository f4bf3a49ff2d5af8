package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
)

// StartBatchRequest for POST /api/batches/{batchID}/start
type StartBatchRequest struct {
	StartedBy string `json:"started_by"`
}

// BatchesHandler handles batch lifecycle HTTP requests.
type BatchesHandler struct {
	batchService services.BatchService
	logger       *zap.Logger
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(batchService services.BatchService, logger *zap.Logger) *BatchesHandler {
	return &BatchesHandler{
		batchService: batchService,
		logger:       logger,
	}
}

// RegisterRoutes registers the batches handler's routes on the given mux.
func (h *BatchesHandler) RegisterRoutes(mux *http.ServeMux, tenant TenantMiddleware) {
	mux.HandleFunc("POST /api/batches", tenant(h.Create))
	mux.HandleFunc("GET /api/batches/{batchID}", tenant(h.Get))
	mux.HandleFunc("POST /api/batches/{batchID}/ready", tenant(h.Ready))
	mux.HandleFunc("POST /api/batches/{batchID}/start", tenant(h.Start))
	mux.HandleFunc("POST /api/batches/{batchID}/complete", tenant(h.Complete))
	mux.HandleFunc("POST /api/batches/{batchID}/cancel", tenant(h.Cancel))
}

// Create handles POST /api/batches
func (h *BatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}

	var input services.CreateBatchInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	batch, err := h.batchService.CreateBatch(r.Context(), tenantID, input)
	if err != nil {
		h.logger.Error("Failed to create batch",
			zap.String("batch_type", string(input.BatchType)),
			zap.Int("operations", len(input.OperationIDs)),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, batch); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/batches/{batchID}
func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	batchID, ok := ParseBatchID(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.batchService.GetBatch(r.Context(), tenantID, batchID)
	if err != nil {
		h.logger.Error("Failed to get batch",
			zap.String("batch_id", batchID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, detail); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Ready handles POST /api/batches/{batchID}/ready
func (h *BatchesHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, "ready", func(tenantID, batchID uuid.UUID) (interface{}, error) {
		return h.batchService.MarkBatchReady(r.Context(), tenantID, batchID)
	})
}

// Start handles POST /api/batches/{batchID}/start
func (h *BatchesHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.applyTransition(w, r, "start", func(tenantID, batchID uuid.UUID) (interface{}, error) {
		return h.batchService.StartBatch(r.Context(), tenantID, batchID, req.StartedBy)
	})
}

// Complete handles POST /api/batches/{batchID}/complete
func (h *BatchesHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, "complete", func(tenantID, batchID uuid.UUID) (interface{}, error) {
		return h.batchService.CompleteBatch(r.Context(), tenantID, batchID)
	})
}

// Cancel handles POST /api/batches/{batchID}/cancel
func (h *BatchesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, "cancel", func(tenantID, batchID uuid.UUID) (interface{}, error) {
		return h.batchService.CancelBatch(r.Context(), tenantID, batchID)
	})
}

func (h *BatchesHandler) applyTransition(w http.ResponseWriter, r *http.Request, verb string,
	apply func(tenantID, batchID uuid.UUID) (interface{}, error)) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	batchID, ok := ParseBatchID(w, r, h.logger)
	if !ok {
		return
	}

	batch, err := apply(tenantID, batchID)
	if err != nil {
		h.logger.Error("Failed to transition batch",
			zap.String("batch_id", batchID.String()),
			zap.String("transition", verb),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, batch); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
