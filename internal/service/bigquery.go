package service

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/querypilot/querypilot/internal/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultQueryTimeout = 60 * time.Second

// BigQueryService is the query-engine boundary. Every billed execution
// carries the configured MaxBytesBilled ceiling; dry runs bill nothing and
// return no rows.
type BigQueryService struct {
	client         *bigquery.Client
	projectID      string
	location       string
	maxBytesBilled int64
}

// NewBigQueryService creates the BigQuery client handle. The handle has
// process-wide lifetime and is injected into its consumers rather than held
// as a global, so tests can substitute stubs.
func NewBigQueryService(ctx context.Context, projectID, credentialsFile, location string, maxBytesBilled int64) (*BigQueryService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}

	return &BigQueryService{
		client:         client,
		projectID:      projectID,
		location:       location,
		maxBytesBilled: maxBytesBilled,
	}, nil
}

// Close releases the underlying client.
func (s *BigQueryService) Close() error {
	return s.client.Close()
}

// TestConnection verifies BigQuery connectivity with a trivial query.
func (s *BigQueryService) TestConnection(ctx context.Context) error {
	q := s.client.Query("SELECT 1")
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

// ListDatasets returns all datasets in the project.
func (s *BigQueryService) ListDatasets(ctx context.Context) ([]models.DatasetInfo, error) {
	var datasets []models.DatasetInfo
	it := s.client.Datasets(ctx)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list datasets: %w", err)
		}
		meta, err := ds.Metadata(ctx)
		if err != nil {
			log.Warn().Err(err).Str("dataset", ds.DatasetID).Msg("failed to get dataset metadata")
			datasets = append(datasets, models.DatasetInfo{
				ID:        ds.DatasetID,
				ProjectID: ds.ProjectID,
			})
			continue
		}
		datasets = append(datasets, models.DatasetInfo{
			ID:          ds.DatasetID,
			ProjectID:   ds.ProjectID,
			Location:    meta.Location,
			Description: meta.Description,
		})
	}
	return datasets, nil
}

// GetDataset returns details for a specific dataset.
func (s *BigQueryService) GetDataset(ctx context.Context, datasetID string) (*models.DatasetInfo, error) {
	meta, err := s.client.Dataset(datasetID).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("get dataset %q: %w", datasetID, err)
	}
	return &models.DatasetInfo{
		ID:          datasetID,
		ProjectID:   s.projectID,
		Location:    meta.Location,
		Description: meta.Description,
	}, nil
}

// ListTables returns tables in a dataset with row/byte counts.
func (s *BigQueryService) ListTables(ctx context.Context, datasetID string) ([]models.TableInfo, error) {
	var tables []models.TableInfo
	it := s.client.Dataset(datasetID).Tables(ctx)
	for {
		tbl, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		meta, err := tbl.Metadata(ctx)
		if err != nil {
			log.Warn().Err(err).Str("table", tbl.TableID).Msg("failed to get table metadata")
			tables = append(tables, models.TableInfo{
				ID:        tbl.TableID,
				DatasetID: datasetID,
			})
			continue
		}
		tables = append(tables, models.TableInfo{
			ID:          tbl.TableID,
			DatasetID:   datasetID,
			Type:        string(meta.Type),
			NumRows:     meta.NumRows,
			NumBytes:    meta.NumBytes,
			Description: meta.Description,
		})
	}
	return tables, nil
}

// GetTableSchema returns the schema and metadata for one table.
func (s *BigQueryService) GetTableSchema(ctx context.Context, datasetID, tableID string) (bigquery.Schema, *bigquery.TableMetadata, error) {
	meta, err := s.client.Dataset(datasetID).Table(tableID).Metadata(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get table %q.%q: %w", datasetID, tableID, err)
	}
	return meta.Schema, meta, nil
}

// ProjectID returns the GCP project this service is bound to.
func (s *BigQueryService) ProjectID() string {
	return s.projectID
}

// QueryResult holds the outcome of one BigQuery execution.
type QueryResult struct {
	Data                []map[string]interface{}
	Columns             []string
	JobID               string
	TotalBytesProcessed int64
	BytesBilled         int64
	CacheHit            bool
	ExecutionTimeMs     int64
	TotalRows           int64
}

// ExecuteQuery runs sql against BigQuery. With dryRun set the engine only
// validates: no bytes are billed and no rows come back.
func (s *BigQueryService) ExecuteQuery(ctx context.Context, sql, projectID string, dryRun bool, timeout time.Duration, useCache bool) (*QueryResult, error) {
	q := s.client.Query(sql)
	q.DryRun = dryRun
	q.DisableQueryCache = !useCache
	if !dryRun {
		q.MaxBytesBilled = s.maxBytesBilled
	}
	if projectID != "" {
		q.DefaultProjectID = projectID
	}

	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	job, err := q.Run(qCtx)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	status, err := job.Wait(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	execMs := time.Since(start).Milliseconds()

	stats := job.LastStatus().Statistics
	var bytesProcessed, bytesBilled int64
	var cacheHit bool
	if stats != nil {
		bytesProcessed = stats.TotalBytesProcessed
		if qStats, ok := stats.Details.(*bigquery.QueryStatistics); ok {
			bytesBilled = qStats.TotalBytesBilled
			cacheHit = qStats.CacheHit
		}
	}

	if dryRun {
		return &QueryResult{
			JobID:               job.ID(),
			TotalBytesProcessed: bytesProcessed,
			ExecutionTimeMs:     execMs,
		}, nil
	}

	it, err := job.Read(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	var rows []map[string]interface{}
	var columns []string
	first := true

	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		if first && it.Schema != nil {
			for _, f := range it.Schema {
				columns = append(columns, f.Name)
			}
			first = false
		}

		m := make(map[string]interface{}, len(row))
		for k, v := range row {
			m[k] = v
		}
		rows = append(rows, m)
	}

	return &QueryResult{
		Data:                rows,
		Columns:             columns,
		JobID:               job.ID(),
		TotalBytesProcessed: bytesProcessed,
		BytesBilled:         bytesBilled,
		CacheHit:            cacheHit,
		ExecutionTimeMs:     execMs,
		TotalRows:           int64(len(rows)),
	}, nil
}

// ValidateQuerySyntax runs a dry-run check. No billed work happens and no
// data moves; a non-nil error carries the engine's message verbatim.
func (s *BigQueryService) ValidateQuerySyntax(ctx context.Context, sql string) error {
	_, err := s.ExecuteQuery(ctx, sql, "", true, 0, false)
	return err
}

// RunQuery is the billed execution path with default settings.
func (s *BigQueryService) RunQuery(ctx context.Context, sql string) (*QueryResult, error) {
	return s.ExecuteQuery(ctx, sql, "", false, 0, true)
}
