package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/layer-3/gatekeeper/adapters/events"
	"github.com/layer-3/gatekeeper/adapters/store"
	"github.com/layer-3/gatekeeper/internal/config"
	"github.com/layer-3/gatekeeper/ports"
)

// backends holds the stores selected by configuration and how to release them.
type backends struct {
	identities ports.IdentityStore
	ledger     ports.NonceLedger
	publisher  ports.EventPublisher

	postgres *store.PostgresStore
	mongo    *store.MongoStore

	closers []func()
}

// Close releases backends in reverse order of acquisition.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if cfg.Uses(config.DriverPostgres) {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		b.postgres, err = store.NewPostgresStore(pool, cfg.Postgres.Schema)
		if err != nil {
			return nil, err
		}
	}

	var rdb *redis.Client
	if cfg.Nonce.Driver == config.DriverRedis || cfg.Events.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		b.closers = append(b.closers, func() { _ = rdb.Close() })
	}

	switch cfg.Identity.Driver {
	case config.DriverPostgres:
		b.identities = b.postgres
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		b.closers = append(b.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		b.mongo = store.NewMongoStore(client, cfg.Mongo.Database, cfg.Mongo.Collection)
		b.identities = b.mongo
	default:
		logger.Warn().Msg("identities are kept in memory and are lost on restart")
		b.identities = store.NewMemoryStore()
	}

	switch cfg.Nonce.Driver {
	case config.DriverPostgres:
		b.ledger = b.postgres
	case config.DriverRedis:
		b.ledger = store.NewRedisLedger(rdb,
			store.WithPrefix(cfg.Redis.Prefix),
			store.WithRetention(cfg.Redis.Retention),
		)
	default:
		b.ledger = store.NewMemoryLedger()
	}

	if cfg.Events.Enabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: rdb},
			events.NewZerologAdapter(logger.With().Str("component", "events").Logger()),
		)
		if err != nil {
			return nil, fmt.Errorf("creating event publisher: %w", err)
		}
		b.closers = append(b.closers, func() { _ = publisher.Close() })
		b.publisher = events.NewWatermillPublisher(publisher)
	}

	return b, nil
}

// prepare creates the schema or indexes the selected stores rely on.
func (b *backends) prepare(ctx context.Context) error {
	if b.postgres != nil {
		if err := b.postgres.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating postgres: %w", err)
		}
	}
	if b.mongo != nil {
		if err := b.mongo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("creating mongo indexes: %w", err)
		}
	}
	return nil
}
