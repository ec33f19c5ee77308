package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "rentsplit/pkg/http"
	kafkamiddleware "rentsplit/pkg/kafka/middleware"
	"rentsplit/pkg/logger"
)

const readinessTimeout = 2 * time.Second

type HealthResponse struct {
	Status   string                           `json:"status"`
	Database string                           `json:"database,omitempty"`
	Kafka    *kafkamiddleware.MetricsSnapshot `json:"kafka,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store   pinger
	metrics *kafkamiddleware.Metrics
	log     *logger.Logger
}

// NewHealthHandler reports readiness from the auction store. metrics may be
// nil when Kafka is disabled.
func NewHealthHandler(store pinger, metrics *kafkamiddleware.Metrics, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		metrics: metrics,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ready", Database: "ok"}
	if h.metrics != nil {
		snapshot := h.metrics.Snapshot()
		resp.Kafka = &snapshot
	}

	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		status = http.StatusServiceUnavailable
		resp.Status = "unavailable"
		resp.Database = "error"
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
