package llm

import (
	"fmt"
	"strings"
)

// historyWindow is how many prior exchanges are replayed into a prompt.
const historyWindow = 5

// SystemInstruction accompanies every generation call. It pins the output
// contract the extractor and validator rely on: SELECT-only, BigQuery
// dialect, SQL inside a fenced code block.
const SystemInstruction = `You are a BigQuery SQL expert assistant. Your role is to help users query their data by generating accurate, efficient SQL queries.

IMPORTANT RULES:
1. ONLY generate SELECT queries. Never generate INSERT, UPDATE, DELETE, DROP, CREATE, or any other data-modifying statements.
2. Always use fully qualified table names with backticks: ` + "`project.dataset.table`" + `
3. Use BigQuery SQL dialect (not MySQL, PostgreSQL, etc.)
4. Include appropriate LIMIT clauses to prevent excessive data retrieval
5. Use column aliases for clarity when using functions or expressions
6. Handle NULL values appropriately
7. For date/time operations, use BigQuery's date functions (DATE, TIMESTAMP, EXTRACT, etc.)

OUTPUT FORMAT:
- Return ONLY the SQL query in a markdown code block
- No explanations before or after unless specifically asked
- Format the SQL for readability with proper indentation

If you cannot generate a valid SELECT query for the user's request, explain why instead of generating unsafe SQL.`

// BuildTextToSQLPrompt renders the initial generation prompt: schema context,
// up to the five most recent prior (question, sql) exchanges, then the
// current question.
func BuildTextToSQLPrompt(question, schemaContext string, history []ChatTurn) string {
	var b strings.Builder

	b.WriteString("## Database Schema\n\n")
	b.WriteString(schemaContext)
	b.WriteString("\n\n")

	if turns := replayableTurns(history); len(turns) > 0 {
		b.WriteString("## Previous Conversation\n\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "User: %s\n", turn.Question)
			fmt.Fprintf(&b, "SQL Generated:\n```sql\n%s\n```\n", turn.SQL)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Current Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\nGenerate a BigQuery SQL query to answer this question.")

	return b.String()
}

// replayableTurns filters history down to turns that carry SQL and keeps the
// most recent historyWindow of them, oldest first.
func replayableTurns(history []ChatTurn) []ChatTurn {
	var withSQL []ChatTurn
	for _, t := range history {
		if t.SQL != "" {
			withSQL = append(withSQL, t)
		}
	}
	if len(withSQL) > historyWindow {
		withSQL = withSQL[len(withSQL)-historyWindow:]
	}
	return withSQL
}

// BuildErrorRetryPrompt renders the retry prompt seeded with the previous
// attempt's SQL and error.
func BuildErrorRetryPrompt(question, failedSQL, errMsg, schemaContext string) string {
	return fmt.Sprintf(`## Database Schema
%s

## Original Question
%s

## Failed SQL Query
`+"```sql\n%s\n```"+`

## Error Message
%s

## Task
The above SQL query failed with the given error. Please fix the query and generate a corrected version.
Only return the corrected SQL query in a code block, no explanations.`,
		schemaContext, question, failedSQL, errMsg)
}

// BuildExplanationPrompt asks for a plain-language explanation of a query.
func BuildExplanationPrompt(sql, question string) string {
	return fmt.Sprintf(`## Original Question
%s

## SQL Query
`+"```sql\n%s\n```"+`

Please explain what this SQL query does in simple terms:
1. What tables and columns are being used?
2. What filtering or conditions are applied?
3. How are the results grouped or ordered?
4. What will the output look like?

Keep the explanation concise and accessible to non-technical users.`, question, sql)
}

// BuildSuggestionsPrompt asks for n example questions answerable from the
// given schema, as a numbered list.
func BuildSuggestionsPrompt(schemaContext string, n int) string {
	return fmt.Sprintf(`## Database Schema
%s

Based on this database schema, suggest %d interesting questions that could be answered with SQL queries.

Format your response as a numbered list:
1. [question]
2. [question]
...

Focus on questions that would provide valuable business insights.`, schemaContext, n)
}

// BuildSchemaSummaryPrompt asks for a short description of a schema.
func BuildSchemaSummaryPrompt(schemaContext string) string {
	return fmt.Sprintf(`## Database Schema
%s

Please provide a brief summary of this database schema:
1. What kind of data does this database contain?
2. What are the main entities/tables?
3. What kinds of questions could be answered with this data?

Keep the summary concise (3-5 sentences).`, schemaContext)
}
