package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/querypilot/querypilot/internal/llm"
	"github.com/querypilot/querypilot/internal/service"
)

// scriptedGenerator returns canned responses in order, recording each prompt.
// The last response repeats once the script runs out.
type scriptedGenerator struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (g *scriptedGenerator) Generate(ctx context.Context, p llm.GenerateParams) (string, error) {
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, p.Prompt)

	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

// stubEngine scripts dry-run outcomes and records executed SQL.
type stubEngine struct {
	dryRunErrs []error
	dryRuns    int
	ranSQL     string
	runResult  *service.QueryResult
	runErr     error
}

func (e *stubEngine) ValidateQuerySyntax(ctx context.Context, sql string) error {
	i := e.dryRuns
	e.dryRuns++
	if i < len(e.dryRunErrs) {
		return e.dryRunErrs[i]
	}
	return nil
}

func (e *stubEngine) RunQuery(ctx context.Context, sql string) (*service.QueryResult, error) {
	e.ranSQL = sql
	if e.runErr != nil {
		return nil, e.runErr
	}
	if e.runResult != nil {
		return e.runResult, nil
	}
	return &service.QueryResult{}, nil
}

func fenced(sql string) string {
	return "```sql\n" + sql + "\n```"
}

// ─── GenerateSQL ──────────────────────────────────────────────────────────────

func TestGenerateSQLFirstAttemptSucceeds(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{fenced("SELECT 1")}}
	engine := &stubEngine{}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateSQL(context.Background(), "pick one", "schema", nil)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.SQL != "SELECT 1" {
		t.Errorf("SQL = %q, want %q", result.SQL, "SELECT 1")
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if engine.dryRuns != 1 {
		t.Errorf("dry runs = %d, want 1", engine.dryRuns)
	}
}

func TestGenerateSQLRetriesAfterProseResponse(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"I am not sure which table you mean.",
		fenced("SELECT name FROM users"),
	}}
	engine := &stubEngine{}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateSQL(context.Background(), "names", "schema", nil)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
	// The retry prompt must carry the failure forward
	if len(gen.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[1], "could not extract SQL") {
		t.Error("retry prompt should contain the previous failure message")
	}
}

func TestGenerateSQLRetriesAfterValidationRejection(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		fenced("DELETE FROM users"),
		fenced("SELECT * FROM users"),
	}}
	engine := &stubEngine{}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateSQL(context.Background(), "all users", "schema", nil)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
	// The rejected statement never reaches the engine
	if engine.dryRuns != 1 {
		t.Errorf("dry runs = %d, want 1", engine.dryRuns)
	}
	if !strings.Contains(gen.prompts[1], "DELETE FROM users") {
		t.Error("retry prompt should contain the rejected SQL")
	}
}

func TestGenerateSQLRetriesAfterDryRunFailure(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		fenced("SELECT * FROM ordres"),
		fenced("SELECT * FROM orders"),
	}}
	engine := &stubEngine{dryRunErrs: []error{errors.New("Table ordres not found")}}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateSQL(context.Background(), "orders", "schema", nil)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
	if !strings.Contains(gen.prompts[1], "Table ordres not found") {
		t.Error("retry prompt should contain the dry-run error")
	}
}

func TestGenerateSQLExhaustsRetries(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"no SQL here, sorry"}}
	engine := &stubEngine{}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateSQL(context.Background(), "anything", "schema", nil)

	if result.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if result.Attempts != llm.MaxRetries {
		t.Errorf("attempts = %d, want %d", result.Attempts, llm.MaxRetries)
	}
	if result.Error == "" {
		t.Error("failure result should carry the last error")
	}
	if gen.calls != llm.MaxRetries {
		t.Errorf("model calls = %d, want %d", gen.calls, llm.MaxRetries)
	}
}

func TestGenerateSQLTransportErrorRetried(t *testing.T) {
	gen := &scriptedGenerator{
		errs:      []error{&llm.LLMError{Message: "generation failed", Err: errors.New("boom")}},
		responses: []string{"", fenced("SELECT 1")},
	}
	engine := &stubEngine{}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateSQL(context.Background(), "q", "schema", nil)

	if !result.Success {
		t.Fatalf("expected success after transport retry, got %q", result.Error)
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
}

func TestGenerateSQLStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &scriptedGenerator{errs: []error{ctx.Err(), ctx.Err(), ctx.Err()}, responses: []string{""}}
	engine := &stubEngine{}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateSQL(ctx, "q", "schema", nil)

	if result.Success {
		t.Fatal("expected failure with cancelled context")
	}
	if gen.calls != 1 {
		t.Errorf("model calls = %d, want 1 (no retry after cancellation)", gen.calls)
	}
}

// ─── GenerateAndExecute ───────────────────────────────────────────────────────

func TestGenerateAndExecuteSuccess(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{fenced("SELECT name FROM users")}}
	engine := &stubEngine{runResult: &service.QueryResult{
		Data:                []map[string]interface{}{{"name": "ada"}},
		Columns:             []string{"name"},
		TotalBytesProcessed: 1024,
	}}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateAndExecute(context.Background(), "names", "schema", nil)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if engine.ranSQL != "SELECT name FROM users" {
		t.Errorf("executed %q, want the generated SQL", engine.ranSQL)
	}
	if result.RowCount != 1 || result.BytesProcessed != 1024 {
		t.Errorf("unexpected result metadata: %+v", result)
	}
}

func TestGenerateAndExecuteExecutionFailureNotRetried(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{fenced("SELECT 1")}}
	engine := &stubEngine{runErr: errors.New("quota exceeded")}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateAndExecute(context.Background(), "q", "schema", nil)

	if result.Success {
		t.Fatal("expected failure when execution fails")
	}
	if result.SQL != "SELECT 1" {
		t.Errorf("failure should still report the generated SQL, got %q", result.SQL)
	}
	if !strings.Contains(result.Error, "quota exceeded") {
		t.Errorf("error = %q, want the execution error", result.Error)
	}
	if gen.calls != 1 {
		t.Errorf("model calls = %d, want 1 (execution failures are terminal)", gen.calls)
	}
}

func TestGenerateAndExecuteSkipsExecutionOnFailure(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"nothing usable"}}
	engine := &stubEngine{}
	g := llm.NewSQLGenerator(gen, engine, 0)

	result := g.GenerateAndExecute(context.Background(), "q", "schema", nil)

	if result.Success {
		t.Fatal("expected failure")
	}
	if engine.ranSQL != "" {
		t.Error("nothing should execute when generation fails")
	}
}

// ─── SuggestQuestions ─────────────────────────────────────────────────────────

func TestSuggestQuestionsParsesNumberedList(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"Here are some ideas:\n1. How many users signed up last month?\n2. What is the average order value?\n3. Which product sells best?\nHope that helps!",
	}}
	g := llm.NewSQLGenerator(gen, &stubEngine{}, 0)

	questions, err := g.SuggestQuestions(context.Background(), "schema", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"How many users signed up last month?",
		"What is the average order value?",
	}
	if len(questions) != len(want) {
		t.Fatalf("got %d questions, want %d", len(questions), len(want))
	}
	for i := range want {
		if questions[i] != want[i] {
			t.Errorf("question %d = %q, want %q", i, questions[i], want[i])
		}
	}
}
