package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
)

// RequestPMIRequest for POST /api/parts/{partID}/request-pmi
type RequestPMIRequest struct {
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
}

// AssemblyCheckResponse for GET /api/parts/{partID}/assembly-check
type AssemblyCheckResponse struct {
	Ready   bool        `json:"ready"`
	Warning interface{} `json:"warning,omitempty"`
}

// PartsHandler handles part detail, assembly and PMI HTTP requests.
type PartsHandler struct {
	partService     services.PartService
	assemblyService services.AssemblyService
	logger          *zap.Logger
}

// NewPartsHandler creates a new parts handler.
func NewPartsHandler(partService services.PartService, assemblyService services.AssemblyService, logger *zap.Logger) *PartsHandler {
	return &PartsHandler{
		partService:     partService,
		assemblyService: assemblyService,
		logger:          logger,
	}
}

// RegisterRoutes registers the parts handler's routes on the given mux.
func (h *PartsHandler) RegisterRoutes(mux *http.ServeMux, tenant TenantMiddleware) {
	mux.HandleFunc("GET /api/parts/{partID}", tenant(h.Get))
	mux.HandleFunc("GET /api/parts/{partID}/assembly-check", tenant(h.AssemblyCheck))
	mux.HandleFunc("GET /api/parts/{partID}/pmi-status", tenant(h.PMIStatus))
	mux.HandleFunc("POST /api/parts/{partID}/request-pmi", tenant(h.RequestPMI))
}

// Get handles GET /api/parts/{partID}
func (h *PartsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	partID, ok := ParsePartID(w, r, h.logger)
	if !ok {
		return
	}

	part, err := h.partService.GetPart(r.Context(), tenantID, partID)
	if err != nil {
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, part); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AssemblyCheck handles GET /api/parts/{partID}/assembly-check
func (h *PartsHandler) AssemblyCheck(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	partID, ok := ParsePartID(w, r, h.logger)
	if !ok {
		return
	}

	warning, err := h.assemblyService.CheckAssemblyReadiness(r.Context(), tenantID, partID)
	if err != nil {
		h.logger.Error("Failed to check assembly readiness",
			zap.String("part_id", partID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := AssemblyCheckResponse{Ready: warning == nil}
	if warning != nil {
		response.Warning = warning
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// PMIStatus handles GET /api/parts/{partID}/pmi-status
func (h *PartsHandler) PMIStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	partID, ok := ParsePartID(w, r, h.logger)
	if !ok {
		return
	}

	status, err := h.partService.GetPMIStatus(r.Context(), tenantID, partID)
	if err != nil {
		httpStatus, code := MapError(err)
		if err := ErrorResponse(w, httpStatus, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, status); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// RequestPMI handles POST /api/parts/{partID}/request-pmi
func (h *PartsHandler) RequestPMI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r, h.logger)
	if !ok {
		return
	}
	partID, ok := ParsePartID(w, r, h.logger)
	if !ok {
		return
	}

	var req RequestPMIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	err := h.partService.RequestPMIExtraction(r.Context(), tenantID, partID, req.FileURL, req.FileName)
	if err != nil {
		h.logger.Error("Failed to request PMI extraction",
			zap.String("part_id", partID.String()),
			zap.Error(err))
		status, code := MapError(err)
		if err := ErrorResponse(w, status, code, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
