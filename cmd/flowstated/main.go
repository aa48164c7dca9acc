// Package main is the flowstated daemon, which runs a flowstate engine as a
// standalone service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate"
	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event/redisstream"
	"github.com/dogmatiq/flowstate/internal/config"
	"github.com/dogmatiq/flowstate/internal/tracing"
	"github.com/dogmatiq/flowstate/internal/x/loggingx"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/persistence/boltstore"
	"github.com/dogmatiq/flowstate/persistence/memorystore"
	"github.com/dogmatiq/flowstate/persistence/sqlitestore"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// newContext returns a cancelable context that is canceled when the process
// receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	ctx, cancel := newContext()
	defer cancel()

	if err := run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := newZapLogger(cfg)
	if err != nil {
		return err
	}
	defer zl.Sync() // nolint:errcheck

	logger := loggingx.Zap(zl)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	processes, err := (&definition.Repository{}).LoadDir(cfg.Definitions)
	if err != nil {
		return err
	}

	options := []flowstate.EngineOption{
		flowstate.WithStore(store),
		flowstate.WithDefinitions(processes...),
		flowstate.WithLogger(logger),
		flowstate.WithConcurrencyLimit(cfg.ConcurrencyLimit),
		flowstate.WithPollInterval(cfg.PollInterval),
		flowstate.WithLockDuration(cfg.LockDuration),
		flowstate.WithLockOwner(cfg.LockOwner),
		flowstate.WithJobRetries(cfg.JobRetries),
		flowstate.WithNetworking(
			flowstate.WithListenAddress(cfg.ListenAddress),
		),
	}

	if cfg.RedisURL != "" {
		client, rerr := openRedis(ctx, cfg.RedisURL)
		if rerr != nil {
			return rerr
		}
		defer func() {
			err = multierr.Append(err, client.Close())
		}()

		options = append(
			options,
			flowstate.WithObserver(&redisstream.Observer{
				Client: client,
				Stream: cfg.RedisStream,
			}),
		)
	}

	if cfg.OTelEndpoint != "" {
		shutdown, terr := tracing.Setup(ctx, flowstate.ServiceName, cfg.OTelEndpoint)
		if terr != nil {
			return fmt.Errorf("unable to configure tracing: %w", terr)
		}
		defer func() {
			err = multierr.Append(err, shutdown(context.Background()))
		}()

		options = append(
			options,
			flowstate.WithTracer(otel.Tracer("github.com/dogmatiq/flowstate")),
		)
	}

	logging.Log(
		logger,
		"starting with %d process definition(s) and the %s store",
		len(processes),
		cfg.Store,
	)

	return flowstate.New(options...).Run(ctx)
}

// newZapLogger returns the zap logger described by cfg.
func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()

	if cfg.Debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return zc.Build()
}

// openStore opens the store described by cfg.
func openStore(ctx context.Context, cfg config.Config) (persistence.Store, error) {
	switch cfg.Store {
	case config.MemoryStore:
		return &memorystore.Store{}, nil
	case config.BoltStore:
		return boltstore.Open(ctx, cfg.StorePath, 0, nil)
	case config.SQLiteStore:
		return sqlitestore.Open(ctx, cfg.StorePath)
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// openRedis connects to the Redis server at url.
func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse FLOWSTATE_REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("unable to connect to redis: %w", err),
			client.Close(),
		)
	}

	return client, nil
}
