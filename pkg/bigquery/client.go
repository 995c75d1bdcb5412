// Package bigquery owns the storefront's analytics dataset connection.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var errNotInitialized = errors.New("bigquery client not initialized")

// Client wraps one dataset and the order events table inside it.
type Client struct {
	client     *bigquery.Client
	dataset    *bigquery.Dataset
	table      string
	autoCreate bool
	logg       *logger.Logger
}

// NewClient connects to BigQuery and confirms the dataset exists. The table is
// checked separately by EnsureTable once the caller knows its schema.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.OrderEventsTable)
	switch {
	case projectID == "":
		return nil, errors.New("gcp project id is required")
	case datasetID == "":
		return nil, errors.New("bigquery dataset is required")
	case table == "":
		return nil, errors.New("bigquery order events table is required")
	}

	bq, err := bigquery.NewClient(ctx, projectID, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{
		client:     bq,
		dataset:    bq.Dataset(datasetID),
		table:      table,
		autoCreate: cfg.AutoCreateTable,
		logg:       logg,
	}

	metaCtx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(metaCtx); err != nil {
		_ = bq.Close()
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("dataset %q does not exist", datasetID)
		}
		return nil, fmt.Errorf("read dataset %q: %w", datasetID, err)
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// EnsureTable verifies the order events table carries every column in schema.
// When auto creation is enabled a missing table is created, partitioned by day
// on partitionField.
func (c *Client) EnsureTable(ctx context.Context, schema bigquery.Schema, partitionField string) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	handle := c.dataset.Table(c.table)
	meta, err := handle.Metadata(ctx)
	switch {
	case err == nil:
		if missing := missingColumns(meta.Schema, schema); len(missing) > 0 {
			return fmt.Errorf("table %q is missing columns %s", c.table, strings.Join(missing, ", "))
		}
		return nil
	case !isStatus(err, http.StatusNotFound):
		return fmt.Errorf("read table %q: %w", c.table, err)
	case !c.autoCreate:
		return fmt.Errorf("table %q does not exist", c.table)
	}

	create := &bigquery.TableMetadata{Schema: schema}
	if partitionField != "" {
		create.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: partitionField,
		}
	}
	if err := handle.Create(ctx, create); err != nil && !isStatus(err, http.StatusConflict) {
		return fmt.Errorf("create table %q: %w", c.table, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"dataset": c.dataset.DatasetID,
			"table":   c.table,
		}), "bigquery table created")
	}
	return nil
}

// missingColumns lists top-level columns in want that have is lacking.
func missingColumns(have, want bigquery.Schema) []string {
	present := make(map[string]struct{}, len(have))
	for _, field := range have {
		present[strings.ToLower(field.Name)] = struct{}{}
	}
	var missing []string
	for _, field := range want {
		if _, ok := present[strings.ToLower(field.Name)]; !ok {
			missing = append(missing, field.Name)
		}
	}
	return missing
}

// Ping reads the table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.dataset.Table(c.table).Metadata(ctx)
	return err
}

// InsertRows streams rows into table. Rows may be structs or bigquery.ValueSaver values.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

// OrderEventsTable returns the table analytics rows are written to.
func (c *Client) OrderEventsTable() string {
	if c == nil {
		return ""
	}
	return c.table
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
