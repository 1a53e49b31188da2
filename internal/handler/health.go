package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/querypilot/querypilot/internal/models"
	"github.com/querypilot/querypilot/internal/service"
)

const version = "1.0.0"

// HealthHandler handles GET /health with dependency checks.
type HealthHandler struct {
	bq *service.BigQueryService
}

func NewHealthHandler(bq *service.BigQueryService) *HealthHandler {
	return &HealthHandler{bq: bq}
}

// Health handles GET /health. Reports degraded with 503 when BigQuery is
// unreachable instead of always returning 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	// Short timeout so a stuck dependency doesn't block the probe
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.bq != nil {
		if err := h.bq.TestConnection(ctx); err != nil {
			checks["bigquery"] = "unavailable: " + err.Error()
			overallStatus = "degraded"
		} else {
			checks["bigquery"] = "ok"
		}
	} else {
		checks["bigquery"] = "disabled"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
