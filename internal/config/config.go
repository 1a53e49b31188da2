package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// BigQuery
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location"`

	// Security
	MaxQueryBytesProcessed  int64    `json:"max_query_bytes_processed"`
	EnableQueryCostTracking bool     `json:"enable_query_cost_tracking"`
	EnableDataMasking       bool     `json:"enable_data_masking"`
	EnablePIIDetection      bool     `json:"enable_pii_detection"`
	SensitiveColumns        []string `json:"sensitive_columns"`
	PIIKeywords             []string `json:"pii_keywords"`
	EnableAuditLogging      bool     `json:"enable_audit_logging"`

	// AI / LLM
	AnthropicAPIKey  string `json:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url"` // override for a custom proxy
	AnthropicModel   string `json:"anthropic_model"`
	LLMCallTimeout   int    `json:"llm_call_timeout"`  // seconds, per model call
	PipelineTimeout  int    `json:"pipeline_timeout"`  // seconds, whole generate request
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                    DefaultHost,
		Port:                    DefaultPort,
		Environment:             DefaultEnvironment,
		APIPrefix:               DefaultAPIPrefix,
		LogLevel:                DefaultLogLevel,
		CORSOrigins:             DefaultCORSOrigins,
		APIKeyHeader:            "X-API-Key",
		EnableAuth:              true,
		RateLimitPerMinute:      DefaultRateLimitPerMinute,
		BigQueryLocation:        DefaultBigQueryLocation,
		MaxQueryBytesProcessed:  DefaultMaxQueryBytesProcessed,
		EnableQueryCostTracking: true,
		EnableDataMasking:       true,
		EnablePIIDetection:      true,
		SensitiveColumns:        DefaultSensitiveColumns,
		PIIKeywords:             DefaultPIIKeywords,
		EnableAuditLogging:      true,
		AnthropicModel:          DefaultAnthropicModel,
		LLMCallTimeout:          int(DefaultLLMCallTimeout / time.Second),
		PipelineTimeout:         int(DefaultPipelineTimeout / time.Second),
	}

	// Load from JSON config file if specified
	if path := getEnv("QUERYPILOT_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LLMCallDuration returns the per-call timeout as a Duration.
func (c *Config) LLMCallDuration() time.Duration {
	return time.Duration(c.LLMCallTimeout) * time.Second
}

// PipelineDuration returns the whole-request timeout as a Duration.
func (c *Config) PipelineDuration() time.Duration {
	return time.Duration(c.PipelineTimeout) * time.Second
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("QUERYPILOT_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("QUERYPILOT_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("QUERYPILOT_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("QUERYPILOT_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("QUERYPILOT_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("ANTHROPIC_MODEL", ""); v != "" {
		cfg.AnthropicModel = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("MAX_QUERY_BYTES_PROCESSED", ""); v != "" {
		if b, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxQueryBytesProcessed = b
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
