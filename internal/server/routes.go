package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/querypilot/querypilot/internal/handler"
	"github.com/querypilot/querypilot/internal/llm"
	"github.com/querypilot/querypilot/internal/middleware"
	"github.com/querypilot/querypilot/internal/security"
	"github.com/querypilot/querypilot/internal/service"
	"github.com/rs/zerolog/log"
)

// setupRoutes returns (router, bqSvc, error) so bqSvc can be closed on shutdown
func (s *Server) setupRoutes() (http.Handler, *service.BigQueryService, error) {
	cfg := s.cfg
	ctx := context.Background()

	// ─── Services ───────────────────────────────────────────────────────────────
	var bqSvc *service.BigQueryService
	if cfg.GCPProjectID != "" {
		var bqErr error
		bqSvc, bqErr = service.NewBigQueryService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials, cfg.BigQueryLocation, cfg.MaxQueryBytesProcessed)
		if bqErr != nil {
			log.Warn().Err(bqErr).Msg("BigQuery service unavailable")
		}
	} else {
		log.Warn().Msg("GCP_PROJECT_ID not set - BigQuery disabled")
	}

	var llmClient *llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient = llm.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL)
	} else {
		log.Warn().Msg("ANTHROPIC_API_KEY not set - SQL generation disabled")
	}

	// Startup summary — warn clearly about disabled features
	log.Info().
		Bool("bigquery_enabled", bqSvc != nil).
		Bool("generation_enabled", llmClient != nil && bqSvc != nil).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	if bqSvc == nil {
		log.Warn().Msg("WARNING: BigQuery not configured - query and generation endpoints unavailable")
	}
	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Security ───────────────────────────────────────────────────────────────
	piiDetector := security.NewPIIDetector(cfg.PIIKeywords)
	questionVal := security.NewQuestionValidator()
	sqlVal := security.NewSQLValidator()
	costTracker := security.NewCostTracker(cfg.MaxQueryBytesProcessed)
	dataMasker := security.NewDataMasker(cfg.SensitiveColumns)
	auditLogger := security.NewAuditLogger(cfg.EnableAuditLogging)

	// ─── Handlers ────────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(bqSvc)

	var datasetsH *handler.DatasetsHandler
	var tablesH *handler.TablesHandler
	var queryH *handler.QueryHandler
	var generateH *handler.GenerateHandler

	if bqSvc != nil {
		datasetsH = handler.NewDatasetsHandler(bqSvc)
		tablesH = handler.NewTablesHandler(bqSvc)
		queryH = handler.NewQueryHandler(bqSvc, sqlVal, costTracker, dataMasker, auditLogger, cfg.EnableDataMasking)

		if llmClient != nil {
			sqlGen := llm.NewSQLGenerator(llmClient, bqSvc, cfg.LLMCallDuration())
			schemaBuilder := service.NewSchemaContextBuilder(bqSvc)
			generateH = handler.NewGenerateHandler(
				sqlGen, schemaBuilder,
				questionVal, piiDetector, sqlVal, dataMasker, auditLogger,
				cfg.EnableDataMasking, cfg.EnablePIIDetection,
				cfg.PipelineDuration(),
			)
		}
	}

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	// Auth + rate limiting for API routes
	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute),
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			if datasetsH != nil {
				r.Get("/datasets", datasetsH.ListDatasets)
				r.Get("/datasets/{dataset_id}", datasetsH.GetDataset)
			}
			if tablesH != nil {
				r.Get("/datasets/{dataset_id}/tables", tablesH.ListTables)
				r.Get("/datasets/{dataset_id}/tables/{table_id}", tablesH.GetTable)
			}
			if queryH != nil {
				r.Post("/query", queryH.Execute)
			}

			// Text-to-SQL
			if generateH != nil {
				r.Post("/generate", generateH.Generate)
				r.Post("/ask", generateH.Ask)
				r.Post("/explain", generateH.Explain)
				r.Post("/suggest", generateH.Suggest)
			}
		})
	})

	return r, bqSvc, nil
}
