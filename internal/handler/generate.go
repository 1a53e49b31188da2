package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/querypilot/querypilot/internal/llm"
	"github.com/querypilot/querypilot/internal/models"
	"github.com/querypilot/querypilot/internal/security"
	"github.com/querypilot/querypilot/internal/service"
)

// GenerateHandler drives the text-to-SQL endpoints: generation, generation
// plus execution, explanation and question suggestions.
type GenerateHandler struct {
	gen         *llm.SQLGenerator
	schema      *service.SchemaContextBuilder
	questionVal *security.QuestionValidator
	piiDetector *security.PIIDetector
	sqlVal      *security.SQLValidator
	dataMasker  *security.DataMasker
	auditLogger *security.AuditLogger
	enableMask  bool
	enablePII   bool
	maxTimeout  time.Duration
}

func NewGenerateHandler(
	gen *llm.SQLGenerator,
	schema *service.SchemaContextBuilder,
	questionVal *security.QuestionValidator,
	piiDetector *security.PIIDetector,
	sqlVal *security.SQLValidator,
	dataMasker *security.DataMasker,
	auditLogger *security.AuditLogger,
	enableMask, enablePII bool,
	maxTimeout time.Duration,
) *GenerateHandler {
	return &GenerateHandler{
		gen:         gen,
		schema:      schema,
		questionVal: questionVal,
		piiDetector: piiDetector,
		sqlVal:      sqlVal,
		dataMasker:  dataMasker,
		auditLogger: auditLogger,
		enableMask:  enableMask,
		enablePII:   enablePII,
		maxTimeout:  maxTimeout,
	}
}

// screenQuestion runs the request-side safety checks shared by Generate and
// Ask. A non-empty return is the rejection message.
func (h *GenerateHandler) screenQuestion(question string) string {
	if res := h.questionVal.Validate(question); !res.Valid {
		return res.Message
	}
	if h.enablePII {
		if found, keyword := h.piiDetector.Detect(question); found {
			return "question appears to reference sensitive data (" + keyword + ")"
		}
	}
	return ""
}

func (h *GenerateHandler) prepare(w http.ResponseWriter, r *http.Request) (*models.GenerateRequest, string, context.Context, context.CancelFunc, bool) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, "", nil, nil, false
	}
	req.SetDefaults()

	if msg := h.screenQuestion(req.Question); msg != "" {
		models.WriteError(w, http.StatusBadRequest, msg)
		return nil, "", nil, nil, false
	}
	if req.DatasetID == "" {
		models.WriteError(w, http.StatusBadRequest, "dataset_id is required")
		return nil, "", nil, nil, false
	}

	timeout := time.Duration(req.Timeout) * time.Second
	if h.maxTimeout > 0 && timeout > h.maxTimeout {
		timeout = h.maxTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)

	schemaContext, err := h.schema.BuildContext(ctx, req.DatasetID, req.TableIDs)
	if err != nil {
		cancel()
		models.WriteError(w, http.StatusInternalServerError, "failed to build schema context: "+err.Error())
		return nil, "", nil, nil, false
	}

	return &req, schemaContext, ctx, cancel, true
}

func toChatTurns(history []models.ChatTurn) []llm.ChatTurn {
	if len(history) == 0 {
		return nil
	}
	turns := make([]llm.ChatTurn, len(history))
	for i, t := range history {
		turns[i] = llm.ChatTurn{Question: t.Question, SQL: t.SQL, Error: t.Error}
	}
	return turns
}

// Generate handles POST /api/v1/generate: question in, validated SQL out,
// no billed execution. Exhausting the retry budget is reported in the body,
// not as an HTTP error.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, schemaContext, ctx, cancel, ok := h.prepare(w, r)
	if !ok {
		return
	}
	defer cancel()

	apiKey := r.Header.Get("X-API-Key")
	start := time.Now()

	result := h.gen.GenerateSQL(ctx, req.Question, schemaContext, toChatTurns(req.History))
	execMs := time.Since(start).Milliseconds()
	h.auditLogger.LogGeneration(req.Question, apiKey, result.SQL, result.Attempts, result.Success, execMs)

	status := "success"
	if !result.Success {
		status = "error"
	}
	models.WriteJSON(w, http.StatusOK, models.GenerateResponse{
		Status:   status,
		Question: req.Question,
		SQL:      result.SQL,
		Error:    result.Error,
		Attempts: result.Attempts,
	})
}

// Ask handles POST /api/v1/ask: generation chained into one billed
// execution, with masking applied to the rows.
func (h *GenerateHandler) Ask(w http.ResponseWriter, r *http.Request) {
	req, schemaContext, ctx, cancel, ok := h.prepare(w, r)
	if !ok {
		return
	}
	defer cancel()

	apiKey := r.Header.Get("X-API-Key")
	start := time.Now()

	result := h.gen.GenerateAndExecute(ctx, req.Question, schemaContext, toChatTurns(req.History))
	execMs := time.Since(start).Milliseconds()
	h.auditLogger.LogGeneration(req.Question, apiKey, result.SQL, result.Attempts, result.Success, execMs)

	rows := result.Rows
	if h.enableMask && len(rows) > 0 {
		rows = h.dataMasker.MaskRows(rows)
	}

	status := "success"
	if !result.Success {
		status = "error"
	}
	models.WriteJSON(w, http.StatusOK, models.AskResponse{
		Status:   status,
		Question: req.Question,
		SQL:      result.SQL,
		Data:     rows,
		Columns:  result.Columns,
		RowCount: result.RowCount,
		Error:    result.Error,
		Attempts: result.Attempts,
	})
}

// Explain handles POST /api/v1/explain. The SQL passes the safety validator
// first so the model is never shown a statement we would refuse to run.
func (h *GenerateHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req models.ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

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

	explanation, err := h.gen.ExplainSQL(r.Context(), cleaned, req.Question)
	if err != nil {
		models.WriteError(w, http.StatusBadGateway, "explanation failed: "+err.Error())
		return
	}

	models.WriteJSON(w, http.StatusOK, models.ExplainResponse{
		Status:      "success",
		SQL:         cleaned,
		Explanation: explanation,
	})
}

// Suggest handles POST /api/v1/suggest: example questions answerable from a
// dataset's schema.
func (h *GenerateHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req models.SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()

	if req.DatasetID == "" {
		models.WriteError(w, http.StatusBadRequest, "dataset_id is required")
		return
	}

	schemaContext, err := h.schema.BuildContext(r.Context(), req.DatasetID, req.TableIDs)
	if err != nil {
		models.WriteError(w, http.StatusInternalServerError, "failed to build schema context: "+err.Error())
		return
	}

	questions, err := h.gen.SuggestQuestions(r.Context(), schemaContext, req.Count)
	if err != nil {
		models.WriteError(w, http.StatusBadGateway, "suggestion failed: "+err.Error())
		return
	}

	models.WriteJSON(w, http.StatusOK, models.SuggestResponse{
		Status:    "success",
		DatasetID: req.DatasetID,
		Questions: questions,
	})
}
