package llm

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/querypilot/querypilot/internal/security"
	"github.com/querypilot/querypilot/internal/service"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the attempt budget for one generation request.
	MaxRetries = 3

	// Attempt 1 favors determinism; retries run slightly hotter to escape a
	// repeated failure mode.
	initialTemperature = 0.1
	retryTemperature   = 0.2

	explainTemperature = 0.3
	suggestTemperature = 0.7

	defaultMaxTokens = 2048
)

// TextGenerator is the language-model boundary. *Client implements it;
// tests substitute deterministic stubs.
type TextGenerator interface {
	Generate(ctx context.Context, p GenerateParams) (string, error)
}

// QueryEngine is the subset of the BigQuery service the generator needs:
// a cost-free dry-run check and a billed execution.
type QueryEngine interface {
	ValidateQuerySyntax(ctx context.Context, sql string) error
	RunQuery(ctx context.Context, sql string) (*service.QueryResult, error)
}

// ChatTurn is one prior exchange in a conversation. Turns are immutable;
// only turns that carry SQL are replayed into prompts.
type ChatTurn struct {
	Question string `json:"question"`
	SQL      string `json:"sql,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GenerationResult is the terminal artifact of the retry loop. When Success
// is true, SQL has passed both the safety validator and a dry-run check.
type GenerationResult struct {
	Success  bool   `json:"success"`
	SQL      string `json:"sql,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// ExecutionResult is produced by GenerateAndExecute after a successful
// generation.
type ExecutionResult struct {
	Success        bool                     `json:"success"`
	SQL            string                   `json:"sql,omitempty"`
	Rows           []map[string]interface{} `json:"rows,omitempty"`
	Columns        []string                 `json:"columns,omitempty"`
	RowCount       int                      `json:"row_count"`
	BytesProcessed int64                    `json:"bytes_processed"`
	Error          string                   `json:"error,omitempty"`
	Attempts       int                      `json:"attempts"`
}

// SQLGenerator drives text-to-SQL generation with validation and bounded
// retry. It holds no mutable state; concurrent calls are safe.
type SQLGenerator struct {
	gen         TextGenerator
	engine      QueryEngine
	validator   *security.SQLValidator
	callTimeout time.Duration
}

// NewSQLGenerator wires the generator to its collaborators. callTimeout
// bounds each individual language-model call; zero disables the bound.
func NewSQLGenerator(gen TextGenerator, engine QueryEngine, callTimeout time.Duration) *SQLGenerator {
	return &SQLGenerator{
		gen:         gen,
		engine:      engine,
		validator:   security.NewSQLValidator(),
		callTimeout: callTimeout,
	}
}

// GenerateSQL turns a natural-language question into validated, dry-run
// checked SQL. Failed attempts are recorded and fed into the next retry
// prompt; after MaxRetries the last error and last attempted SQL are
// returned rather than an error. Cancelling ctx stops the loop early.
func (g *SQLGenerator) GenerateSQL(ctx context.Context, question, schemaContext string, history []ChatTurn) GenerationResult {
	initialPrompt := BuildTextToSQLPrompt(question, schemaContext, history)

	var lastSQL, lastError string
	attempts := 0

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		attempts = attempt

		prompt, temperature := initialPrompt, initialTemperature
		if attempt > 1 {
			prompt = BuildErrorRetryPrompt(question, lastSQL, lastError, schemaContext)
			temperature = retryTemperature
		}

		text, err := g.call(ctx, prompt, SystemInstruction, temperature)
		if err != nil {
			lastError = err.Error()
			if ctx.Err() != nil {
				break
			}
			continue
		}

		sql, ok := ExtractSQL(text)
		if !ok {
			lastError = "could not extract SQL from model response"
			continue
		}
		lastSQL = sql

		cleaned, err := g.validator.Validate(sql)
		if err != nil {
			// Rejection is expected control flow here, not a failure of the
			// pipeline; it seeds the next retry prompt.
			log.Debug().Int("attempt", attempt).Err(err).Msg("generated SQL rejected by validator")
			lastError = err.Error()
			continue
		}
		lastSQL = cleaned

		if err := g.engine.ValidateQuerySyntax(ctx, cleaned); err != nil {
			log.Debug().Int("attempt", attempt).Err(err).Msg("dry run rejected generated SQL")
			lastError = err.Error()
			if ctx.Err() != nil {
				break
			}
			continue
		}

		log.Debug().Int("attempt", attempt).Msg("SQL generation succeeded")
		return GenerationResult{Success: true, SQL: cleaned, Attempts: attempt}
	}

	return GenerationResult{
		Success:  false,
		SQL:      lastSQL,
		Error:    lastError,
		Attempts: attempts,
	}
}

// GenerateAndExecute chains a successful generation into one billed
// execution. Execution failures are surfaced verbatim and never retried.
func (g *SQLGenerator) GenerateAndExecute(ctx context.Context, question, schemaContext string, history []ChatTurn) ExecutionResult {
	gen := g.GenerateSQL(ctx, question, schemaContext, history)
	if !gen.Success {
		return ExecutionResult{
			Success:  false,
			SQL:      gen.SQL,
			Error:    gen.Error,
			Attempts: gen.Attempts,
		}
	}

	result, err := g.engine.RunQuery(ctx, gen.SQL)
	if err != nil {
		return ExecutionResult{
			Success:  false,
			SQL:      gen.SQL,
			Error:    err.Error(),
			Attempts: gen.Attempts,
		}
	}

	return ExecutionResult{
		Success:        true,
		SQL:            gen.SQL,
		Rows:           result.Data,
		Columns:        result.Columns,
		RowCount:       len(result.Data),
		BytesProcessed: result.TotalBytesProcessed,
		Attempts:       gen.Attempts,
	}
}

// ExplainSQL asks the model for a plain-language explanation of a query.
// The SQL-only system instruction is deliberately omitted: the answer here
// is prose.
func (g *SQLGenerator) ExplainSQL(ctx context.Context, sql, question string) (string, error) {
	return g.call(ctx, BuildExplanationPrompt(sql, question), "", explainTemperature)
}

// SuggestQuestions asks the model for up to n example questions answerable
// from the schema and parses them out of the numbered-list response.
func (g *SQLGenerator) SuggestQuestions(ctx context.Context, schemaContext string, n int) ([]string, error) {
	text, err := g.call(ctx, BuildSuggestionsPrompt(schemaContext, n), "", suggestTemperature)
	if err != nil {
		return nil, err
	}

	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !unicode.IsDigit(rune(line[0])) {
			continue
		}
		if _, rest, found := strings.Cut(line, "."); found {
			questions = append(questions, strings.TrimSpace(rest))
		} else {
			questions = append(questions, line)
		}
		if len(questions) == n {
			break
		}
	}
	return questions, nil
}

func (g *SQLGenerator) call(ctx context.Context, prompt, system string, temperature float64) (string, error) {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}
	return g.gen.Generate(ctx, GenerateParams{
		Prompt:            prompt,
		SystemInstruction: system,
		Temperature:       temperature,
		MaxTokens:         defaultMaxTokens,
	})
}
