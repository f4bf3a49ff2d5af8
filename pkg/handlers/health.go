package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/config"
)

// PingResponse carries service identity and build information.
type PingResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname,omitempty"`
	UptimeSecs  int64  `json:"uptime_seconds"`
}

// HealthHandler serves the unauthenticated liveness endpoints.
type HealthHandler struct {
	cfg     *config.Config
	logger  *zap.Logger
	started time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, logger: logger, started: time.Now()}
}

// RegisterRoutes registers the health endpoints. These stay outside the
// tenant middleware: load balancers carry no tenant header.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health returns a bare "ok" for load balancer checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping returns service identity, version, and uptime.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	response := PingResponse{
		Status:      "ok",
		Service:     "eryxon-flow",
		Version:     h.cfg.Version,
		Environment: h.cfg.Env,
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		UptimeSecs:  int64(time.Since(h.started).Seconds()),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
