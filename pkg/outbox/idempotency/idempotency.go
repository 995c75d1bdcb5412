// Package idempotency guards Pub/Sub consumers against redelivered outbox events.
//
// A consumer claims an event before handling it. The claim is a short lease so
// a worker that dies mid-handling does not block redelivery for long. Once the
// handler succeeds the marker is promoted to done and kept for the full TTL.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	markerInFlight = "processing"
	markerDone     = "done"
)

// State is the outcome of a claim attempt.
type State int

const (
	// Claimed means the caller owns the event and must Complete or Release it.
	Claimed State = iota
	// Done means another delivery already handled the event.
	Done
	// InFlight means another worker holds an unexpired lease on the event.
	InFlight
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case Done:
		return "done"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Store is the redis surface the manager needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager keys markers as `sf:idempotency:evt:<consumer>:<event_id>`.
type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

func NewManager(store Store, ttl, lease time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	case lease <= 0 || lease > ttl:
		return nil, errors.New("lease must be positive and no longer than ttl")
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Claim tries to take ownership of eventID for consumer.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (State, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return Claimed, err
	}
	// A marker can expire between SetNX and Get, so one extra round is allowed.
	for range 2 {
		ok, err := m.store.SetNX(ctx, key, markerInFlight, m.lease)
		if err != nil {
			return Claimed, fmt.Errorf("claim %s: %w", key, err)
		}
		if ok {
			return Claimed, nil
		}
		current, err := m.store.Get(ctx, key)
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return Claimed, fmt.Errorf("read marker %s: %w", key, err)
		}
		if current == markerDone {
			return Done, nil
		}
		return InFlight, nil
	}
	return InFlight, nil
}

// Complete marks the event handled for the full TTL.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

// Release drops the claim so a redelivery can try again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
