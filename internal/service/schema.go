package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const schemaCacheTTL = 5 * time.Minute

// ColumnContext is one column as rendered into prompts.
type ColumnContext struct {
	Name        string
	Type        string
	Mode        string // NULLABLE, REQUIRED or REPEATED
	Description string
}

// TableContext is one table as rendered into prompts.
type TableContext struct {
	FullName    string // `project.dataset.table`
	Description string
	RowCount    uint64
	Columns     []ColumnContext
}

type schemaCacheEntry struct {
	context   string
	expiresAt time.Time
}

// SchemaContextBuilder renders dataset schemas into the textual form that is
// embedded verbatim into prompts. Rendered contexts are cached for a few
// minutes; concurrent misses for the same key share one BigQuery fetch via
// singleflight.
type SchemaContextBuilder struct {
	bq *BigQueryService

	mu    sync.RWMutex
	cache map[string]schemaCacheEntry
	sf    singleflight.Group
}

func NewSchemaContextBuilder(bq *BigQueryService) *SchemaContextBuilder {
	return &SchemaContextBuilder{
		bq:    bq,
		cache: make(map[string]schemaCacheEntry),
	}
}

// BuildContext returns the schema-context text for a dataset, optionally
// restricted to tableIDs.
func (b *SchemaContextBuilder) BuildContext(ctx context.Context, datasetID string, tableIDs []string) (string, error) {
	key := datasetID + "|" + strings.Join(tableIDs, ",")

	if cached, ok := b.get(key); ok {
		log.Debug().Str("dataset", datasetID).Msg("schema context cache hit")
		return cached, nil
	}

	v, err, _ := b.sf.Do(key, func() (interface{}, error) {
		// Another goroutine may have populated the cache while we waited to
		// enter the singleflight.
		if cached, ok := b.get(key); ok {
			return cached, nil
		}

		fetchStart := time.Now()
		tables, err := b.fetchTables(ctx, datasetID, tableIDs)
		if err != nil {
			return "", err
		}

		rendered := FormatSchemaContext(b.bq.ProjectID(), datasetID, tables)
		b.set(key, rendered)

		log.Info().
			Str("dataset", datasetID).
			Int("tables", len(tables)).
			Dur("fetch", time.Since(fetchStart)).
			Msg("schema context cached")
		return rendered, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops all cached contexts for a dataset.
func (b *SchemaContextBuilder) Invalidate(datasetID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.cache {
		if strings.HasPrefix(key, datasetID+"|") {
			delete(b.cache, key)
		}
	}
}

func (b *SchemaContextBuilder) get(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.cache[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.context, true
}

func (b *SchemaContextBuilder) set(key, rendered string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache[key] = schemaCacheEntry{
		context:   rendered,
		expiresAt: time.Now().Add(schemaCacheTTL),
	}
}

func (b *SchemaContextBuilder) fetchTables(ctx context.Context, datasetID string, tableIDs []string) ([]TableContext, error) {
	infos, err := b.bq.ListTables(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	wanted := make(map[string]bool, len(tableIDs))
	for _, id := range tableIDs {
		wanted[id] = true
	}

	var tables []TableContext
	for _, info := range infos {
		if len(wanted) > 0 && !wanted[info.ID] {
			continue
		}
		schema, meta, err := b.bq.GetTableSchema(ctx, datasetID, info.ID)
		if err != nil {
			log.Warn().Err(err).Str("table", info.ID).Msg("schema fetch failed, skipping table")
			continue
		}

		tc := TableContext{
			FullName:    fmt.Sprintf("`%s.%s.%s`", b.bq.ProjectID(), datasetID, info.ID),
			Description: meta.Description,
			RowCount:    meta.NumRows,
		}
		for _, f := range schema {
			mode := "NULLABLE"
			if f.Required {
				mode = "REQUIRED"
			} else if f.Repeated {
				mode = "REPEATED"
			}
			tc.Columns = append(tc.Columns, ColumnContext{
				Name:        f.Name,
				Type:        string(f.Type),
				Mode:        mode,
				Description: f.Description,
			})
		}
		tables = append(tables, tc)
	}
	return tables, nil
}

// FormatSchemaContext renders tables as the text block embedded into
// prompts. Pure formatting, exported for tests.
func FormatSchemaContext(projectID, datasetID string, tables []TableContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", projectID)
	fmt.Fprintf(&b, "Dataset: %s\n\n", datasetID)

	for _, tbl := range tables {
		fmt.Fprintf(&b, "### Table: %s\n", tbl.FullName)
		if tbl.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", tbl.Description)
		}
		if tbl.RowCount > 0 {
			fmt.Fprintf(&b, "Row count: %d\n", tbl.RowCount)
		}

		b.WriteString("\nColumns:\n")
		for _, col := range tbl.Columns {
			line := fmt.Sprintf("  - `%s` (%s", col.Name, col.Type)
			if col.Mode != "NULLABLE" {
				line += ", " + col.Mode
			}
			line += ")"
			if col.Description != "" {
				line += " - " + col.Description
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// RelevantTables guesses which tables a question refers to by name mention,
// with naive singular/plural handling. Returns all tables when nothing
// matches, leaving the choice to the model.
func RelevantTables(question string, allTables []string) []string {
	lower := strings.ToLower(question)

	var relevant []string
	for _, table := range allTables {
		t := strings.ToLower(table)
		switch {
		case strings.Contains(lower, t):
			relevant = append(relevant, table)
		case strings.HasSuffix(t, "s") && strings.Contains(lower, strings.TrimSuffix(t, "s")):
			relevant = append(relevant, table)
		case strings.Contains(lower, t+"s"):
			relevant = append(relevant, table)
		}
	}

	if len(relevant) == 0 {
		return allTables
	}
	return relevant
}
