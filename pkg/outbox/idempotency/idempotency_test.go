package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	// vanishOnGet simulates a lease expiring between SetNX and Get.
	vanishOnGet bool
	err         error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	if s.vanishOnGet {
		s.vanishOnGet = false
		delete(s.values, key)
	}
	v, ok := s.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func newManager(t *testing.T, store *memoryStore) *Manager {
	t.Helper()
	m, err := NewManager(store, 24*time.Hour, time.Minute)
	require.NoError(t, err)
	return m
}

func TestClaimLifecycle(t *testing.T) {
	store := newMemoryStore()
	m := newManager(t, store)
	ctx := context.Background()
	eventID := uuid.New()
	key := "sf:idempotency:evt:order-emails:" + eventID.String()

	state, err := m.Claim(ctx, "order-emails", eventID)
	require.NoError(t, err)
	assert.Equal(t, Claimed, state)
	assert.Equal(t, time.Minute, store.ttls[key])

	state, err = m.Claim(ctx, "order-emails", eventID)
	require.NoError(t, err)
	assert.Equal(t, InFlight, state)

	require.NoError(t, m.Complete(ctx, "order-emails", eventID))
	assert.Equal(t, 24*time.Hour, store.ttls[key])

	state, err = m.Claim(ctx, "order-emails", eventID)
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	state, err = m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, Claimed, state, "markers are scoped per consumer")
}

func TestReleaseAllowsReclaim(t *testing.T) {
	m := newManager(t, newMemoryStore())
	ctx := context.Background()
	eventID := uuid.New()

	_, err := m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, "analytics", eventID))

	state, err := m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, Claimed, state)
}

func TestClaimRetriesWhenMarkerExpires(t *testing.T) {
	store := newMemoryStore()
	m := newManager(t, store)
	ctx := context.Background()
	eventID := uuid.New()

	_, err := m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	store.vanishOnGet = true

	state, err := m.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, Claimed, state)
}

func TestClaimErrors(t *testing.T) {
	store := newMemoryStore()
	m := newManager(t, store)
	ctx := context.Background()

	_, err := m.Claim(ctx, "", uuid.New())
	assert.Error(t, err)
	_, err = m.Claim(ctx, "analytics", uuid.Nil)
	assert.Error(t, err)

	store.err = errors.New("redis down")
	_, err = m.Claim(ctx, "analytics", uuid.New())
	assert.ErrorIs(t, err, store.err)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(nil, time.Hour, time.Minute)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), 0, time.Minute)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), time.Minute, time.Hour)
	assert.Error(t, err)
}
