package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(opts Options) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	opts.Output = buf
	opts.Format = FormatJSON
	if opts.ServiceName == "" {
		opts.ServiceName = "test"
	}
	return New(opts), buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestErrorCarriesContextFields(t *testing.T) {
	log, buf := newBufferLogger(Options{Level: zerolog.DebugLevel})
	ctx := log.WithOrderID(log.WithRequestID(context.Background(), "req-123"), "order-1")

	log.Error(ctx, "payment failed", errors.New("gateway timeout"))

	entry := decodeEntry(t, buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "order-1", entry["order_id"])
	assert.Equal(t, "gateway timeout", entry["error"])
	assert.Equal(t, "test", entry["service"])
	assert.NotEmpty(t, entry["stack"])
}

func TestWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	log, buf := newBufferLogger(Options{})
	parent := log.WithField(context.Background(), "job", "checkout-expiry")
	_ = log.WithFields(parent, map[string]any{"batch": 3, "affected": 12})

	log.Info(parent, "cycle finished")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "checkout-expiry", entry["job"])
	assert.NotContains(t, entry, "batch")
}

func TestWithFieldsRendersInKeyOrder(t *testing.T) {
	log, buf := newBufferLogger(Options{})
	ctx := log.WithFields(context.Background(), map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	log.Info(ctx, "ordered")

	line := buf.String()
	assert.Less(t, strings.Index(line, `"alpha"`), strings.Index(line, `"mid"`))
	assert.Less(t, strings.Index(line, `"mid"`), strings.Index(line, `"zeta"`))
}

func TestWarnStackToggle(t *testing.T) {
	loud, buf := newBufferLogger(Options{WarnStack: true})
	loud.Warn(context.Background(), "slow query")
	assert.Contains(t, buf.String(), `"stack"`)

	quiet, buf := newBufferLogger(Options{})
	quiet.Warn(context.Background(), "slow query")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestDebugRespectsLevel(t *testing.T) {
	log, buf := newBufferLogger(Options{Level: zerolog.InfoLevel})
	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
