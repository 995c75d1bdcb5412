package bigquery

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "storefront", OrderEventsTable: "order_events"}, nil)
	require.ErrorContains(t, err, "project id")

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{OrderEventsTable: "order_events"}, nil)
	require.ErrorContains(t, err, "dataset")

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "storefront", OrderEventsTable: "  "}, nil)
	require.ErrorContains(t, err, "table")
}

func TestCredentialOptions(t *testing.T) {
	assert.Len(t, credentialOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Len(t, credentialOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	assert.Empty(t, credentialOptions(config.GCPConfig{}))
}

func TestMissingColumns(t *testing.T) {
	have := bigquery.Schema{{Name: "event_id"}, {Name: "Occurred_At"}}
	want := bigquery.Schema{{Name: "event_id"}, {Name: "occurred_at"}, {Name: "total_cents"}, {Name: "items"}}

	assert.Equal(t, []string{"total_cents", "items"}, missingColumns(have, want))
	assert.Empty(t, missingColumns(want, have[:1]))
}

func TestIsStatus(t *testing.T) {
	wrapped := fmt.Errorf("read table: %w", &googleapi.Error{Code: http.StatusNotFound})
	assert.True(t, isStatus(wrapped, http.StatusNotFound))
	assert.False(t, isStatus(wrapped, http.StatusConflict))
	assert.False(t, isStatus(fmt.Errorf("plain"), http.StatusNotFound))
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Empty(t, c.OrderEventsTable())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.ErrorIs(t, c.InsertRows(context.Background(), "order_events", []any{1}), errNotInitialized)
}
