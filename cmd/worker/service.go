package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultFlushInterval = 10 * time.Second

// runner is a long-lived subscription loop that returns when ctx is cancelled.
type runner interface {
	Run(ctx context.Context) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

type pinger func(context.Context) error

type ServiceParams struct {
	Logger        *logger.Logger
	Consumers     map[string]runner
	Dependencies  map[string]pinger
	Analytics     flusher
	FlushInterval time.Duration
}

// Service fans out the Pub/Sub consumers and keeps the analytics buffer flushed.
type Service struct {
	logg          *logger.Logger
	consumers     map[string]runner
	deps          map[string]pinger
	analytics     flusher
	flushInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	interval := params.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Service{
		logg:          params.Logger,
		consumers:     params.Consumers,
		deps:          params.Dependencies,
		analytics:     params.Analytics,
		flushInterval: interval,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range s.deps {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

// Run blocks until every consumer has stopped. The first consumer failure cancels the others.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for name, consumer := range s.consumers {
		wg.Add(1)
		go func(name string, consumer runner) {
			defer wg.Done()
			s.logg.Info(s.logg.WithField(runCtx, "consumer", name), "consumer started")
			err := consumer.Run(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(s.logg.WithField(runCtx, "consumer", name), "consumer stopped unexpectedly", err)
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			cancel()
		}(name, consumer)
	}

	if s.analytics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.flushLoop(runCtx)
		}()
	}

	wg.Wait()

	if s.analytics != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer flushCancel()
		if err := s.analytics.Flush(flushCtx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("final analytics flush: %w", err))
		}
	}

	if errs != nil {
		return errs
	}
	return ctx.Err()
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.analytics.Flush(ctx); err != nil {
				s.logg.Error(ctx, "analytics flush failed", err)
			}
		}
	}
}
