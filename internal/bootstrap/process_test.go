package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func testProcess(buf *bytes.Buffer) *Process {
	p := newProcess("cron-worker", &config.Config{App: config.AppConfig{Env: "test", LogLevel: "debug"}})
	p.Logger = logger.New(logger.Options{ServiceName: "cron-worker", Format: logger.FormatJSON, Output: buf})
	return p
}

func TestNewProcessStampsKind(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	p := newProcess("outbox-publisher", cfg)
	assert.Equal(t, "outbox-publisher", p.Kind)
	assert.Equal(t, "outbox-publisher", cfg.Service.Kind)
	require.NotNil(t, p.Logger)
}

func TestShutdownClosesInReverse(t *testing.T) {
	var buf bytes.Buffer
	p := testProcess(&buf)
	var order []string
	for _, name := range []string{"database", "redis", "pubsub"} {
		p.Defer(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, []string{"pubsub", "redis", "database"}, order)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Len(t, order, 3, "closers run once")
}

func TestShutdownCollectsFailures(t *testing.T) {
	var buf bytes.Buffer
	p := testProcess(&buf)
	p.Defer("database", func() error { return errors.New("conn busy") })
	p.Defer("redis", func() error { return nil })
	p.Defer("pubsub", func() error { return errors.New("grpc closing") })

	err := p.Shutdown(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "close database: conn busy")
	assert.Contains(t, buf.String(), "shutdown.close_failed")
	assert.Contains(t, buf.String(), `"resource":"pubsub"`)
}

func TestLogContextCarriesProcessFields(t *testing.T) {
	var buf bytes.Buffer
	p := testProcess(&buf)

	ctx := p.LogContext(context.Background(), map[string]any{"interval": "15m"})
	p.Logger.Info(ctx, "ready")

	out := buf.String()
	assert.Contains(t, out, `"serviceKind":"cron-worker"`)
	assert.Contains(t, out, `"env":"test"`)
	assert.Contains(t, out, `"interval":"15m"`)
}

func TestExitIgnoresNilError(t *testing.T) {
	var buf bytes.Buffer
	p := testProcess(&buf)
	closed := false
	p.Defer("redis", func() error { closed = true; return nil })

	p.Exit(context.Background(), "never logged", nil)
	assert.False(t, closed)
	assert.Empty(t, buf.String())
}
