package models

// QueryRequest for POST /api/v1/query (direct SQL)
type QueryRequest struct {
	SQL           string  `json:"sql"`
	ProjectID     *string `json:"project_id,omitempty"`
	DryRun        bool    `json:"dry_run"`
	TimeoutMs     int     `json:"timeout_ms"`
	UseQueryCache bool    `json:"use_query_cache"`
}

func (r *QueryRequest) SetDefaults() {
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 60000
	}
	if r.TimeoutMs < 1000 {
		r.TimeoutMs = 1000
	}
	if r.TimeoutMs > 300000 {
		r.TimeoutMs = 300000
	}
	if !r.DryRun {
		r.UseQueryCache = true
	}
}

// ChatTurn is one prior exchange replayed as conversation context.
type ChatTurn struct {
	Question string `json:"question"`
	SQL      string `json:"sql,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GenerateRequest for POST /api/v1/generate (SQL only, no execution)
// and POST /api/v1/ask (generate plus execute).
type GenerateRequest struct {
	Question  string     `json:"question"`
	DatasetID string     `json:"dataset_id"`
	TableIDs  []string   `json:"table_ids,omitempty"`
	History   []ChatTurn `json:"history,omitempty"`
	Timeout   int        `json:"timeout"` // seconds
}

func (r *GenerateRequest) SetDefaults() {
	if r.Timeout == 0 {
		r.Timeout = 300
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > 600 {
		r.Timeout = 600
	}
}

// ExplainRequest for POST /api/v1/explain
type ExplainRequest struct {
	SQL      string `json:"sql"`
	Question string `json:"question,omitempty"`
}

// SuggestRequest for POST /api/v1/suggest
type SuggestRequest struct {
	DatasetID string   `json:"dataset_id"`
	TableIDs  []string `json:"table_ids,omitempty"`
	Count     int      `json:"count"`
}

func (r *SuggestRequest) SetDefaults() {
	if r.Count <= 0 {
		r.Count = 5
	}
	if r.Count > 10 {
		r.Count = 10
	}
}
