package security

import (
	"github.com/rs/zerolog/log"
)

// AuditLogger records security-relevant events with hashed identifiers so
// raw SQL and API keys never land in logs.
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogQuery records a direct query execution.
func (a *AuditLogger) LogQuery(
	sql, apiKey string,
	executionTimeMs int64,
	rowCount int,
	bytesProcessed int64,
	success bool,
	errMsg string,
) {
	if !a.enabled {
		return
	}

	evt := log.Info().
		Str("event", "query_audit").
		Str("sql_hash", hashStr(sql)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Int64("execution_time_ms", executionTimeMs).
		Int("row_count", rowCount).
		Int64("bytes_processed", bytesProcessed).
		Bool("success", success)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// LogGeneration records one text-to-SQL pipeline run.
func (a *AuditLogger) LogGeneration(
	question, apiKey, generatedSQL string,
	attempts int,
	success bool,
	executionTimeMs int64,
) {
	if !a.enabled {
		return
	}

	sqlHash := ""
	if generatedSQL != "" {
		sqlHash = hashStr(generatedSQL)[:16]
	}

	log.Info().
		Str("event", "generation_audit").
		Str("question_hash", hashStr(question)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Str("sql_hash", sqlHash).
		Int("attempts", attempts).
		Bool("success", success).
		Int64("execution_time_ms", executionTimeMs).
		Msg("generation audit")
}
