package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const bigQueryCostPerTB = 5.0 // USD, on-demand pricing

// CostTracker enforces the hard bytes-processed ceiling on billed queries.
type CostTracker struct {
	maxBytes int64
}

func NewCostTracker(maxBytes int64) *CostTracker {
	return &CostTracker{maxBytes: maxBytes}
}

// MaxBytesBilled is the ceiling handed to the query engine on every billed
// execution.
func (ct *CostTracker) MaxBytesBilled() int64 {
	return ct.maxBytes
}

// CheckLimits returns false with a message when a query's bytes exceed the
// configured ceiling.
func (ct *CostTracker) CheckLimits(totalBytesProcessed int64, apiKey string) (bool, string) {
	if totalBytesProcessed <= ct.maxBytes {
		return true, ""
	}
	processedGB := float64(totalBytesProcessed) / bytesPerGB
	limitGB := float64(ct.maxBytes) / bytesPerGB
	return false, fmt.Sprintf(
		"query cost limit exceeded: processed %.2fGB, limit %.2fGB",
		processedGB, limitGB,
	)
}

// LogQueryCost emits a structured cost event with hashed identifiers.
func (ct *CostTracker) LogQueryCost(sql string, totalBytesProcessed int64, apiKey string, durationMs int64) {
	processedGB := float64(totalBytesProcessed) / bytesPerGB
	costUSD := processedGB / 1000.0 * bigQueryCostPerTB

	log.Info().
		Str("event", "query_cost").
		Str("sql_hash", hashStr(sql)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Float64("cost_gb", processedGB).
		Float64("cost_usd", costUSD).
		Int64("duration_ms", durationMs).
		Msg("query cost")
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
