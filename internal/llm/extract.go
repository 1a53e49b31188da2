package llm

import (
	"regexp"
	"strings"
)

// Extraction tries fenced blocks first, most specific tag first, then falls
// back to scanning for a bare statement.
var (
	reFencedTagged = regexp.MustCompile("(?is)```sql\\s*(.*?)\\s*```")
	reFencedSelect = regexp.MustCompile("(?is)```\\s*(SELECT.*?)\\s*```")
	reFencedWith   = regexp.MustCompile("(?is)```\\s*(WITH.*?)\\s*```")
)

// ExtractSQL pulls a candidate SQL statement out of free-form model output.
// Returns false when nothing plausible is found; that is a recoverable
// outcome for the retry loop, not an error.
func ExtractSQL(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{reFencedTagged, reFencedSelect, reFencedWith} {
		if m := re.FindStringSubmatch(text); m != nil {
			if sql := trimCandidate(m[1]); sql != "" {
				return sql, true
			}
		}
	}

	// No usable fence: capture from the first line starting with SELECT/WITH
	// through the first line ending with a terminator.
	var lines []string
	capturing := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if !capturing && (strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")) {
			capturing = true
		}
		if capturing {
			lines = append(lines, line)
			if strings.HasSuffix(trimmed, ";") {
				break
			}
		}
	}
	if len(lines) == 0 {
		return "", false
	}

	sql := trimCandidate(strings.Join(lines, "\n"))
	return sql, sql != ""
}

// trimCandidate strips surrounding whitespace and the trailing terminator;
// BigQuery does not want the semicolon.
func trimCandidate(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}
