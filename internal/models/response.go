package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// QueryMetadata contains BigQuery job metadata
type QueryMetadata struct {
	JobID               string `json:"job_id"`
	TotalRowsProcessed  int64  `json:"total_rows_processed"`
	TotalBytesProcessed int64  `json:"total_bytes_processed"`
	BytesBilled         int64  `json:"bytes_billed"`
	CacheHit            bool   `json:"cache_hit"`
	ExecutionTimeMs     int64  `json:"execution_time_ms"`
}

// QueryResponse is returned by POST /api/v1/query
type QueryResponse struct {
	Status   string                   `json:"status"`
	Data     []map[string]interface{} `json:"data"`
	Metadata QueryMetadata            `json:"metadata"`
	RowCount int                      `json:"row_count"`
	Columns  []string                 `json:"columns"`
}

// DatasetInfo represents a BigQuery dataset
type DatasetInfo struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Location    string `json:"location"`
	Description string `json:"description,omitempty"`
}

// TableInfo represents a BigQuery table
type TableInfo struct {
	ID          string `json:"id"`
	DatasetID   string `json:"dataset_id"`
	Type        string `json:"type"`
	NumRows     uint64 `json:"num_rows"`
	NumBytes    int64  `json:"num_bytes"`
	Description string `json:"description,omitempty"`
}

// GenerateResponse is returned by POST /api/v1/generate
type GenerateResponse struct {
	Status   string `json:"status"`
	Question string `json:"question"`
	SQL      string `json:"sql,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// AskResponse is returned by POST /api/v1/ask
type AskResponse struct {
	Status   string                   `json:"status"`
	Question string                   `json:"question"`
	SQL      string                   `json:"sql,omitempty"`
	Data     []map[string]interface{} `json:"data,omitempty"`
	Columns  []string                 `json:"columns,omitempty"`
	RowCount int                      `json:"row_count"`
	Error    string                   `json:"error,omitempty"`
	Attempts int                      `json:"attempts"`
}

// ExplainResponse is returned by POST /api/v1/explain
type ExplainResponse struct {
	Status      string `json:"status"`
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// SuggestResponse is returned by POST /api/v1/suggest
type SuggestResponse struct {
	Status    string   `json:"status"`
	DatasetID string   `json:"dataset_id"`
	Questions []string `json:"questions"`
}
