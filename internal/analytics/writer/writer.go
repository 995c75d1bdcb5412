// Package writer streams analytics rows into the order events table.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
)

// PartitionField is the column the order events table is partitioned on.
const PartitionField = "occurred_at"

// Config controls batching and retries. Zero values pick the defaults.
type Config struct {
	OrderEventsTable string
	BatchSize        int
	RetryPolicy      RetryPolicy
}

// RowInserter is the streaming insert surface of the BigQuery client.
type RowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers order event rows and streams them in batches.
// Each row is sent with its event id as the insert id so retried batches are
// deduplicated on a best-effort basis by BigQuery.
type BigQueryWriter struct {
	client    RowInserter
	table     string
	batchSize int
	retry     RetryPolicy
	sleep     func(context.Context, time.Duration) error

	mu      sync.Mutex
	pending []types.OrderEventRow
}

func New(client RowInserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: batch,
		retry:     cfg.RetryPolicy.withDefaults(),
		sleep:     sleepCtx,
	}, nil
}

// Schema returns the order events table schema derived from the row type.
func Schema() (cbigquery.Schema, error) {
	return cbigquery.InferSchema(types.OrderEventRow{})
}

// InsertOrderEvent queues row and flushes once a full batch is pending.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, row)
	if len(w.pending) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes whatever is pending. Rows stay queued when the insert fails.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, 0, len(w.pending))
	for i := range w.pending {
		rows = append(rows, &cbigquery.StructSaver{
			Struct:   &w.pending[i],
			InsertID: w.pending[i].EventID,
		})
	}
	if err := w.insert(ctx, rows); err != nil {
		return err
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *BigQueryWriter) insert(ctx context.Context, rows []any) error {
	delay := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !retryable(err) {
			return fmt.Errorf("insert %d rows into %s after %d attempts: %w", len(rows), w.table, attempt, err)
		}
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, w.retry.MaximumBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
