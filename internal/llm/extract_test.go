package llm_test

import (
	"testing"

	"github.com/querypilot/querypilot/internal/llm"
)

// ─── SQL Extraction ───────────────────────────────────────────────────────────

func TestExtractSQLTaggedFence(t *testing.T) {
	text := "Here is the query:\n```sql\nSELECT name FROM `proj.ds.users` LIMIT 10;\n```\nLet me know if you need changes."
	sql, ok := llm.ExtractSQL(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	want := "SELECT name FROM `proj.ds.users` LIMIT 10"
	if sql != want {
		t.Errorf("extracted %q, want %q", sql, want)
	}
}

func TestExtractSQLGenericFence(t *testing.T) {
	text := "```\nSELECT COUNT(*) AS total FROM orders\n```"
	sql, ok := llm.ExtractSQL(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if sql != "SELECT COUNT(*) AS total FROM orders" {
		t.Errorf("unexpected extraction: %q", sql)
	}
}

func TestExtractSQLFencedCTE(t *testing.T) {
	text := "```\nWITH recent AS (SELECT * FROM events)\nSELECT * FROM recent\n```"
	sql, ok := llm.ExtractSQL(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if sql != "WITH recent AS (SELECT * FROM events)\nSELECT * FROM recent" {
		t.Errorf("unexpected extraction: %q", sql)
	}
}

func TestExtractSQLBareStatement(t *testing.T) {
	text := "The query you need is:\nSELECT id, name\nFROM users\nWHERE active = TRUE;\nThat should do it."
	sql, ok := llm.ExtractSQL(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	want := "SELECT id, name\nFROM users\nWHERE active = TRUE"
	if sql != want {
		t.Errorf("extracted %q, want %q", sql, want)
	}
}

func TestExtractSQLNoCandidate(t *testing.T) {
	cases := []string{
		"I cannot generate a query for that request because the schema has no matching table.",
		"",
		"```sql\n```",
	}
	for _, text := range cases {
		if sql, ok := llm.ExtractSQL(text); ok {
			t.Errorf("expected no extraction from %q, got %q", text, sql)
		}
	}
}

func TestExtractSQLTrailingSemicolonStripped(t *testing.T) {
	sql, ok := llm.ExtractSQL("```sql\nSELECT 1;\n```")
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if sql != "SELECT 1" {
		t.Errorf("semicolon should be stripped, got %q", sql)
	}
}
