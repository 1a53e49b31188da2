package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailColRe    = regexp.MustCompile(`(?i)email`)
	phoneColRe    = regexp.MustCompile(`(?i)phone`)
	ssnColRe      = regexp.MustCompile(`(?i)ssn|social_security`)
	cardColRe     = regexp.MustCompile(`(?i)credit_card|card_number`)
	fullMaskColRe = regexp.MustCompile(`(?i)password|secret|token|api_key|access_key|private_key`)
)

// DataMasker masks sensitive column values in query results before they are
// returned to callers.
type DataMasker struct {
	sensitiveColumns []string
}

func NewDataMasker(sensitiveColumns []string) *DataMasker {
	return &DataMasker{sensitiveColumns: sensitiveColumns}
}

// MaskRows returns a copy of rows with sensitive columns masked.
func (m *DataMasker) MaskRows(rows []map[string]interface{}) []map[string]interface{} {
	masked := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		masked[i] = m.maskRow(row)
	}
	return masked
}

func (m *DataMasker) maskRow(row map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(row))
	for col, val := range row {
		if m.isSensitive(col) {
			result[col] = m.maskValue(col, fmt.Sprintf("%v", val))
		} else {
			result[col] = val
		}
	}
	return result
}

func (m *DataMasker) isSensitive(col string) bool {
	lower := strings.ToLower(col)
	for _, s := range m.sensitiveColumns {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return emailColRe.MatchString(col) || phoneColRe.MatchString(col) ||
		ssnColRe.MatchString(col) || cardColRe.MatchString(col) || fullMaskColRe.MatchString(col)
}

func (m *DataMasker) maskValue(col, val string) string {
	switch {
	case emailColRe.MatchString(col):
		return maskEmail(val)
	case phoneColRe.MatchString(col):
		return maskPhone(val)
	case ssnColRe.MatchString(col):
		return "***-**-****"
	case cardColRe.MatchString(col):
		return maskDigits(val, "****-****-****-")
	default:
		return "***"
	}
}

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}
	local, domain := parts[0], parts[1]

	visible := 2
	if len(local) < visible {
		visible = len(local)
	}

	domainParts := strings.Split(domain, ".")
	ext := domainParts[len(domainParts)-1]
	return fmt.Sprintf("%s***@***.%s", local[:visible], ext)
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	return maskDigits(phone, "***-***-")
}

func maskDigits(val, prefix string) string {
	var digits strings.Builder
	for _, c := range val {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()
	if len(d) < 4 {
		return prefix + "****"
	}
	return prefix + d[len(d)-4:]
}
