// Package bootstrap holds the start-up and tear-down sequence shared by the
// storefront binaries: env loading, config, logging, dependency clients and
// ordered shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type closer struct {
	name string
	fn   func() error
}

// Process is one running binary. Clients opened through it are closed by
// Shutdown in reverse order of opening.
type Process struct {
	Kind    string
	Config  *config.Config
	Logger  *logger.Logger
	closers []closer
}

// Start loads .env (when present) and the config, then builds the logger the
// config asks for. Errors are logged before they are returned.
func Start(kind string) (*Process, error) {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "config.load_failed", err)
		return nil, err
	}
	return newProcess(kind, cfg), nil
}

func newProcess(kind string, cfg *config.Config) *Process {
	cfg.Service.Kind = kind
	return &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
}

// Defer registers fn to run during Shutdown.
func (p *Process) Defer(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Shutdown runs every deferred closer, newest first, and returns all failures.
func (p *Process) Shutdown(ctx context.Context) error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(p.Logger.WithField(ctx, "resource", c.name), "shutdown.close_failed", err)
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	return errs
}

// Database opens the primary database and applies dev migrations when the
// environment allows it.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	p.Defer("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	p.Defer("redis", client.Close)
	return client, nil
}

func (p *Process) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap pubsub: %w", err)
	}
	p.Defer("pubsub", client.Close)
	return client, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the process log
// fields plus any extras.
func (p *Process) SignalContext(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return p.LogContext(ctx, extra), stop
}

func (p *Process) LogContext(ctx context.Context, extra map[string]any) context.Context {
	fields := map[string]any{
		"env":         p.Config.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": p.Kind,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields)
}

// Exit logs err under msg, closes everything and terminates with status 1.
// A nil err is a no-op.
func (p *Process) Exit(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(ctx, msg, err)
	_ = p.Shutdown(ctx)
	os.Exit(1)
}
