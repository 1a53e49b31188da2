package llm_test

import (
	"strings"
	"testing"

	"github.com/querypilot/querypilot/internal/llm"
)

// ─── Prompt Construction ──────────────────────────────────────────────────────

func TestTextToSQLPromptContainsParts(t *testing.T) {
	prompt := llm.BuildTextToSQLPrompt("how many users signed up today?", "### Table: `p.d.users`", nil)

	for _, want := range []string{
		"## Database Schema",
		"### Table: `p.d.users`",
		"## Current Question",
		"how many users signed up today?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "## Previous Conversation") {
		t.Error("prompt should not contain a history section without history")
	}
}

func TestTextToSQLPromptHistoryWindow(t *testing.T) {
	var history []llm.ChatTurn
	for i := 0; i < 8; i++ {
		history = append(history, llm.ChatTurn{
			Question: "question " + string(rune('A'+i)),
			SQL:      "SELECT " + string(rune('A'+i)),
		})
	}

	prompt := llm.BuildTextToSQLPrompt("latest question", "schema", history)

	// Only the five most recent turns are replayed
	for _, dropped := range []string{"question A", "question B", "question C"} {
		if strings.Contains(prompt, dropped) {
			t.Errorf("prompt should not replay old turn %q", dropped)
		}
	}
	for _, kept := range []string{"question D", "question H", "SELECT H"} {
		if !strings.Contains(prompt, kept) {
			t.Errorf("prompt missing recent turn content %q", kept)
		}
	}
}

func TestTextToSQLPromptSkipsTurnsWithoutSQL(t *testing.T) {
	history := []llm.ChatTurn{
		{Question: "a failed one", Error: "could not extract SQL"},
		{Question: "a good one", SQL: "SELECT 1"},
	}

	prompt := llm.BuildTextToSQLPrompt("next", "schema", history)

	if strings.Contains(prompt, "a failed one") {
		t.Error("turns without SQL should not be replayed")
	}
	if !strings.Contains(prompt, "a good one") {
		t.Error("turns with SQL should be replayed")
	}
}

func TestErrorRetryPrompt(t *testing.T) {
	prompt := llm.BuildErrorRetryPrompt(
		"count the orders",
		"SELECT COUNT(*) FROM ordres",
		"Table ordres not found",
		"### Table: `p.d.orders`",
	)

	for _, want := range []string{
		"count the orders",
		"SELECT COUNT(*) FROM ordres",
		"Table ordres not found",
		"## Failed SQL Query",
		"## Error Message",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("retry prompt missing %q", want)
		}
	}
}

func TestSuggestionsPromptCount(t *testing.T) {
	prompt := llm.BuildSuggestionsPrompt("schema here", 7)
	if !strings.Contains(prompt, "suggest 7 interesting questions") {
		t.Errorf("suggestions prompt should carry the requested count, got:\n%s", prompt)
	}
}
