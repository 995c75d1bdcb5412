package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
)

type insertCall struct {
	table     string
	insertIDs []string
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	call := insertCall{table: table}
	for _, row := range rows {
		if saver, ok := row.(*cbigquery.StructSaver); ok {
			call.insertIDs = append(call.insertIDs, saver.InsertID)
		}
	}
	f.calls = append(f.calls, call)
	if n := len(f.calls) - 1; n < len(f.responses) {
		return f.responses[n]
	}
	return nil
}

func newTestWriter(t *testing.T, batch int, responses ...error) (*BigQueryWriter, *fakeInserter, *[]time.Duration) {
	t.Helper()
	fake := &fakeInserter{responses: responses}
	w, err := New(fake, Config{OrderEventsTable: "order_events", BatchSize: batch})
	require.NoError(t, err)
	var slept []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return w, fake, &slept
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{OrderEventsTable: "order_events"})
	assert.Error(t, err)
	_, err = New(&fakeInserter{}, Config{OrderEventsTable: " "})
	assert.Error(t, err)
}

func TestInsertUsesEventIDAsInsertID(t *testing.T) {
	w, fake, _ := newTestWriter(t, 2)
	ctx := context.Background()

	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "evt-1"}))
	assert.Empty(t, fake.calls, "nothing is sent before the batch fills")
	require.NoError(t, w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "evt-2"}))

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "order_events", fake.calls[0].table)
	assert.Equal(t, []string{"evt-1", "evt-2"}, fake.calls[0].insertIDs)
	assert.Empty(t, w.pending)
}

func TestTransientFailureIsRetriedWithBackoff(t *testing.T) {
	w, fake, slept := newTestWriter(t, 1,
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "try later"),
		nil,
	)
	w.retry.MaxAttempts = 5

	require.NoError(t, w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"}))
	assert.Len(t, fake.calls, 3)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}, *slept)
}

func TestPermanentFailureKeepsRowsPending(t *testing.T) {
	w, fake, slept := newTestWriter(t, 1, &googleapi.Error{Code: http.StatusBadRequest})

	err := w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"})
	require.Error(t, err)
	assert.Len(t, fake.calls, 1)
	assert.Empty(t, *slept)
	assert.Len(t, w.pending, 1)

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, []string{"evt-1"}, fake.calls[1].insertIDs)
	assert.Empty(t, w.pending)
}

func TestRetriesStopAtMaxAttempts(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	w, fake, _ := newTestWriter(t, 1, transient, transient, transient, transient)

	err := w.InsertOrderEvent(context.Background(), types.OrderEventRow{EventID: "evt-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Len(t, fake.calls, 3)
}

func TestCancelledContextStopsInsert(t *testing.T) {
	w, fake, _ := newTestWriter(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.InsertOrderEvent(ctx, types.OrderEventRow{EventID: "evt-1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.calls)
}

func TestRetryable(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusServiceUnavailable}
	permanent := &googleapi.Error{Code: http.StatusBadRequest}

	assert.True(t, retryable(transient))
	assert.False(t, retryable(permanent))
	assert.False(t, retryable(errors.New("schema mismatch")))
	assert.True(t, retryable(cbigquery.PutMultiError{{Errors: cbigquery.MultiError{transient}}}))
	assert.False(t, retryable(cbigquery.PutMultiError{
		{Errors: cbigquery.MultiError{transient}},
		{Errors: cbigquery.MultiError{permanent}},
	}))
	assert.False(t, retryable(cbigquery.PutMultiError{}))
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"sku": "TEE-01"})
	require.NoError(t, err)
	assert.True(t, nj.Valid)
	assert.JSONEq(t, `{"sku":"TEE-01"}`, nj.JSONVal)

	nj, err = EncodeJSON(nil)
	require.NoError(t, err)
	assert.False(t, nj.Valid)

	raw := json.RawMessage(`{"sku":"TEE-02"}`)
	nj, err = EncodeJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, string(raw), nj.JSONVal)

	nj, err = EncodeJSON([]byte{})
	require.NoError(t, err)
	assert.False(t, nj.Valid)
}

func TestSchemaCoversRowColumns(t *testing.T) {
	schema, err := Schema()
	require.NoError(t, err)
	names := make(map[string]bool, len(schema))
	for _, field := range schema {
		names[field.Name] = true
	}
	for _, column := range []string{"event_id", PartitionField, "order_id", "total_cents", "items"} {
		assert.True(t, names[column], column)
	}
}
