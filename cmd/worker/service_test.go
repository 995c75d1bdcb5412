package main

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type blockingConsumer struct {
	started atomic.Bool
}

func (b *blockingConsumer) Run(ctx context.Context) error {
	b.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

type failingConsumer struct {
	err error
}

func (f failingConsumer) Run(context.Context) error {
	return f.err
}

type countingFlusher struct {
	calls atomic.Int32
}

func (c *countingFlusher) Flush(context.Context) error {
	c.calls.Add(1)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestServiceRunStopsAllConsumersOnFailure(t *testing.T) {
	blocking := &blockingConsumer{}
	flush := &countingFlusher{}
	svc, err := NewService(ServiceParams{
		Logger: testLogger(),
		Consumers: map[string]runner{
			"emails":    blocking,
			"analytics": failingConsumer{err: errors.New("subscription deleted")},
		},
		Analytics: flush,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subscription deleted")
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after consumer failure")
	}
	assert.GreaterOrEqual(t, flush.calls.Load(), int32(1), "final flush expected")
}

func TestServiceRunReturnsOnCancel(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:        testLogger(),
		Consumers:     map[string]runner{"emails": &blockingConsumer{}},
		FlushInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestServiceRunFailsWhenDependencyDown(t *testing.T) {
	consumer := &blockingConsumer{}
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Consumers:    map[string]runner{"emails": consumer},
		Dependencies: map[string]pinger{"redis": func(context.Context) error { return errors.New("refused") }},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.False(t, consumer.started.Load())
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}
