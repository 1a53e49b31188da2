package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/querypilot/querypilot/internal/models"
	"github.com/querypilot/querypilot/internal/security"
	"github.com/querypilot/querypilot/internal/service"
)

// QueryHandler handles direct SQL query execution
type QueryHandler struct {
	bq          *service.BigQueryService
	sqlVal      *security.SQLValidator
	costTracker *security.CostTracker
	dataMasker  *security.DataMasker
	auditLogger *security.AuditLogger
	enableMask  bool
}

func NewQueryHandler(
	bq *service.BigQueryService,
	sqlVal *security.SQLValidator,
	costTracker *security.CostTracker,
	dataMasker *security.DataMasker,
	auditLogger *security.AuditLogger,
	enableMask bool,
) *QueryHandler {
	return &QueryHandler{
		bq:          bq,
		sqlVal:      sqlVal,
		costTracker: costTracker,
		dataMasker:  dataMasker,
		auditLogger: auditLogger,
		enableMask:  enableMask,
	}
}

// Execute handles POST /api/v1/query
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()

	// SQL validation gates every execution, dry runs included
	cleaned, err := h.sqlVal.Validate(req.SQL)
	if err != nil {
		var verr *security.ValidationError
		if errors.As(err, &verr) {
			models.WriteError(w, http.StatusBadRequest, "SQL validation failed: "+verr.Detail)
		} else {
			models.WriteError(w, http.StatusBadRequest, "SQL validation failed: "+err.Error())
		}
		return
	}

	apiKey := r.Header.Get("X-API-Key")
	start := time.Now()

	projectID := ""
	if req.ProjectID != nil {
		projectID = *req.ProjectID
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	result, err := h.bq.ExecuteQuery(r.Context(), cleaned, projectID, req.DryRun, timeout, req.UseQueryCache)
	if err != nil {
		execMs := time.Since(start).Milliseconds()
		h.auditLogger.LogQuery(cleaned, apiKey, execMs, 0, 0, false, err.Error())
		models.WriteError(w, http.StatusInternalServerError, "query execution failed: "+err.Error())
		return
	}

	execMs := time.Since(start).Milliseconds()

	// Cost check
	if ok, errMsg := h.costTracker.CheckLimits(result.TotalBytesProcessed, apiKey); !ok {
		h.auditLogger.LogQuery(cleaned, apiKey, execMs, 0, result.TotalBytesProcessed, false, errMsg)
		models.WriteError(w, http.StatusTooManyRequests, errMsg)
		return
	}

	h.costTracker.LogQueryCost(cleaned, result.TotalBytesProcessed, apiKey, execMs)

	// Data masking
	data := result.Data
	if h.enableMask {
		data = h.dataMasker.MaskRows(data)
	}

	h.auditLogger.LogQuery(cleaned, apiKey, execMs, len(data), result.TotalBytesProcessed, true, "")

	models.WriteJSON(w, http.StatusOK, models.QueryResponse{
		Status:   "success",
		Data:     data,
		Columns:  result.Columns,
		RowCount: len(data),
		Metadata: models.QueryMetadata{
			JobID:               result.JobID,
			TotalRowsProcessed:  result.TotalRows,
			TotalBytesProcessed: result.TotalBytesProcessed,
			BytesBilled:         result.BytesBilled,
			CacheHit:            result.CacheHit,
			ExecutionTimeMs:     execMs,
		},
	})
}
