package security

import (
	"fmt"
	"regexp"
	"strings"
)

// RejectionKind classifies why the validator refused a query.
type RejectionKind string

const (
	RejectEmptyInput    RejectionKind = "empty_input"
	RejectStatementType RejectionKind = "blocked_statement_type"
	RejectKeyword       RejectionKind = "blocked_keyword"
	RejectPattern       RejectionKind = "blocked_pattern"
)

// ValidationError is returned when SQL fails the read-only gate.
type ValidationError struct {
	Kind   RejectionKind
	Detail string
	SQL    string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// blockedKeywords are operations that must never reach BigQuery, matched as
// whole words anywhere in a statement. EXECUTE is listed before EXEC so the
// reported keyword is the longest match.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "REPLACE", "MERGE", "GRANT", "REVOKE",
	"EXECUTE", "EXEC", "CALL",
}

var blockedKeywordRes = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(blockedKeywords))
	for _, kw := range blockedKeywords {
		res[kw] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return res
}()

// blockedPatterns catch dangerous constructs that slip past the keyword scan,
// e.g. SELECT ... INTO, which starts as a plain SELECT.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bINTO\s+\w+`),
	regexp.MustCompile(`(?i)\bDROP\s+(TABLE|DATABASE|SCHEMA|VIEW|INDEX)`),
	regexp.MustCompile(`(?i)\bCREATE\s+(TABLE|DATABASE|SCHEMA|VIEW|INDEX|FUNCTION|PROCEDURE)`),
	regexp.MustCompile(`(?i)\bALTER\s+(TABLE|DATABASE|SCHEMA)`),
	regexp.MustCompile(`(?i)\bTRUNCATE\s+TABLE`),
	regexp.MustCompile(`(?i)\bEXEC(UTE)?\s*\(`),
}

// SQLValidator enforces the SELECT-only contract. It is stateless and safe
// for concurrent use.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate checks that sql contains only SELECT/CTE statements and returns
// the cleaned (comment-stripped, whitespace-collapsed) text. A multi-statement
// input is rejected as soon as any single statement fails; there is no
// partial acceptance. Cleaning is stable: validating the returned text again
// yields the same text.
func (v *SQLValidator) Validate(sql string) (string, error) {
	if strings.TrimSpace(sql) == "" {
		return "", &ValidationError{Kind: RejectEmptyInput, Detail: "empty SQL query", SQL: sql}
	}

	cleaned := cleanSQL(sql)
	if cleaned == "" {
		return "", &ValidationError{Kind: RejectEmptyInput, Detail: "empty SQL query after comment stripping", SQL: sql}
	}

	for _, stmt := range splitStatements(cleaned) {
		if err := validateStatement(stmt, sql); err != nil {
			return "", err
		}
	}
	return cleaned, nil
}

// IsValid reports whether sql would pass Validate.
func (v *SQLValidator) IsValid(sql string) bool {
	_, err := v.Validate(sql)
	return err == nil
}

func validateStatement(stmt, original string) error {
	kind := classifyStatement(stmt)
	switch kind {
	case stmtSelect, stmtCTE, stmtUnknown:
	default:
		return &ValidationError{
			Kind:   RejectStatementType,
			Detail: fmt.Sprintf("only SELECT queries are allowed, found: %s", kind),
			SQL:    original,
		}
	}

	// Defense in depth: a blocked keyword anywhere in the statement is fatal,
	// even when the leading keyword looked harmless (e.g. inside a CTE body).
	for _, kw := range blockedKeywords {
		if blockedKeywordRes[kw].MatchString(stmt) {
			return &ValidationError{
				Kind:   RejectKeyword,
				Detail: fmt.Sprintf("dangerous operation detected: %s", kw),
				SQL:    original,
			}
		}
	}

	for _, pattern := range blockedPatterns {
		if pattern.MatchString(stmt) {
			return &ValidationError{
				Kind:   RejectPattern,
				Detail: "dangerous SQL pattern detected: " + pattern.String(),
				SQL:    original,
			}
		}
	}
	return nil
}

// statementKind is the declared type of a single statement, derived from its
// leading keyword only.
type statementKind string

const (
	stmtSelect  statementKind = "SELECT"
	stmtCTE     statementKind = "WITH"
	stmtUnknown statementKind = "UNKNOWN"
)

func classifyStatement(stmt string) statementKind {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return stmtUnknown
	}
	first := strings.ToUpper(strings.TrimLeft(fields[0], "("))
	switch {
	case first == "SELECT":
		return stmtSelect
	case first == "WITH":
		return stmtCTE
	default:
		for _, kw := range blockedKeywords {
			if first == kw {
				return statementKind(kw)
			}
		}
		return stmtUnknown
	}
}

// cleanSQL strips -- and /* */ comments and collapses whitespace runs to a
// single space, leaving the contents of string literals and backtick
// identifiers untouched.
func cleanSQL(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	const (
		stNormal = iota
		stSingleQuote
		stDoubleQuote
		stBacktick
		stLineComment
		stBlockComment
	)

	state := stNormal
	lastSpace := false

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch state {
		case stNormal:
			switch {
			case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
				state = stLineComment
				i++
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				state = stBlockComment
				i++
			case c == '\'':
				state = stSingleQuote
				b.WriteByte(c)
				lastSpace = false
			case c == '"':
				state = stDoubleQuote
				b.WriteByte(c)
				lastSpace = false
			case c == '`':
				state = stBacktick
				b.WriteByte(c)
				lastSpace = false
			case c == ' ' || c == '\t' || c == '\n' || c == '\r':
				if !lastSpace {
					b.WriteByte(' ')
					lastSpace = true
				}
			default:
				b.WriteByte(c)
				lastSpace = false
			}
		case stSingleQuote:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(sql) {
				i++
				b.WriteByte(sql[i])
			} else if c == '\'' {
				state = stNormal
			}
		case stDoubleQuote:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(sql) {
				i++
				b.WriteByte(sql[i])
			} else if c == '"' {
				state = stNormal
			}
		case stBacktick:
			b.WriteByte(c)
			if c == '`' {
				state = stNormal
			}
		case stLineComment:
			if c == '\n' {
				state = stNormal
				if !lastSpace {
					b.WriteByte(' ')
					lastSpace = true
				}
			}
		case stBlockComment:
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				state = stNormal
				i++
				if !lastSpace {
					b.WriteByte(' ')
					lastSpace = true
				}
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// splitStatements splits cleaned SQL on semicolons outside string literals.
// Empty fragments (e.g. after a trailing terminator) are dropped.
func splitStatements(cleaned string) []string {
	var stmts []string
	var cur strings.Builder
	inSingle, inDouble, inBacktick := false, false, false

	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]
		switch {
		case c == '\\' && (inSingle || inDouble) && i+1 < len(cleaned):
			cur.WriteByte(c)
			i++
			cur.WriteByte(cleaned[i])
			continue
		case c == '\'' && !inDouble && !inBacktick:
			inSingle = !inSingle
		case c == '"' && !inSingle && !inBacktick:
			inDouble = !inDouble
		case c == '`' && !inSingle && !inDouble:
			inBacktick = !inBacktick
		case c == ';' && !inSingle && !inDouble && !inBacktick:
			if s := strings.TrimSpace(cur.String()); s != "" {
				stmts = append(stmts, s)
			}
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// tableMarkerSet tokens flip on the "expecting a table identifier" flag;
// tableMarkerClear tokens flip it off.
var tableMarkerSet = map[string]bool{
	"FROM": true, "JOIN": true, "INNER": true, "LEFT": true,
	"RIGHT": true, "FULL": true, "CROSS": true, "OUTER": true,
}

var tableMarkerClear = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true,
	"HAVING": true, "LIMIT": true, "UNION": true,
}

// tableStopwords can follow FROM/JOIN without being table references.
var tableStopwords = map[string]bool{
	"SELECT": true, "ON": true, "AND": true, "OR": true, "AS": true,
	"USING": true, "ALL": true, "DISTINCT": true,
}

// ExtractTables returns a best-effort list of table references. This is a
// token-level heuristic, not a reference resolver: complex joins, UNPIVOT
// clauses or table functions may be under- or over-captured.
func (v *SQLValidator) ExtractTables(sql string) []string {
	cleaned := cleanSQL(sql)

	var tables []string
	seen := make(map[string]bool)
	expecting := false

	for _, tok := range strings.Fields(cleaned) {
		name := strings.Trim(tok, "(),;")
		upper := strings.ToUpper(name)

		switch {
		case tableMarkerSet[upper]:
			expecting = true
		case tableMarkerClear[upper]:
			expecting = false
		case expecting && name != "" && !tableStopwords[upper]:
			if !seen[name] {
				seen[name] = true
				tables = append(tables, name)
			}
			expecting = false
		}
	}
	return tables
}
