package main

import (
	"context"
	"database/sql"
	"flashbid/internal/config"
	"flashbid/internal/database/db_client"
	"flashbid/internal/http/http_server"
	"flashbid/internal/journal"
	"flashbid/internal/redis/redis_client"
	"flashbid/internal/redis/redis_functions"
	"flashbid/internal/services/auction"
	"flashbid/internal/store"
	"flashbid/internal/store/memstore"
	"flashbid/internal/store/redisstore"
	"flashbid/internal/store/sqlstore"
	"flashbid/internal/syncbid"
	"flashbid/internal/syncdb"
	"flashbid/internal/ws"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

//go:generate go tool swag init -g main.go -o api_specs --outputTypes json,yaml

// @title			flashbid
// @version		1.0
// @description	Flash-sale bid acceptance with optimistic concurrency.
// @BasePath		/

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.String("backend", cfg.StoreBackend))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Store backend
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		Log.Fatal("store_open", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	// 4. Optional JetStream journal
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			Log.Fatal("nats_connect", zap.Error(err))
		}
		defer nc.Close()

		js, err := jetstream.New(nc)
		if err != nil {
			Log.Fatal("jetstream_new", zap.Error(err))
		}
		if err := journal.EnsureStream(ctx, js, cfg.NatsStream); err != nil {
			Log.Fatal("jetstream_stream", zap.Error(err))
		}
		st = journal.Wrap(st, js)
		Log.Info("journal_enabled", zap.String("stream", cfg.NatsStream))
	}

	// 5. Bid coordinator
	auctionService := auction.NewAuctionService(st, auction.Options{
		FloorPrice: cfg.FloorPrice,
		ItemName:   cfg.ItemName,
		BidDelay:   cfg.BidDelay,
	})

	// 6. HTTP + WS server
	wsSrv := ws.NewWsServer(auctionService)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, auctionService)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			Log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	case <-ctx.Done():
		Log.Info("shutting_down")
		_ = httpServer.Dispose()
	}
}

// openStore builds the configured AuctionStore and anything running beside it.
func openStore(ctx context.Context, cfg *config.Config) (store.AuctionStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memstore.New(), func() {}, nil

	case config.BackendPostgres:
		pgDb, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.New(pgDb, sqlstore.Postgres), func() { pgDb.Close() }, nil

	case config.BackendSQLite:
		db, err := db_client.OpenSQLite(cfg.SqlitePath)
		if err != nil {
			return nil, nil, err
		}
		s := sqlstore.New(db, sqlstore.SQLite)
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, func() { db.Close() }, nil

	case config.BackendRedis:
		redisClient, err := redis_client.NewRedisClient(cfg.RedisAuctionsHost, int(cfg.RedisAuctionsPort))
		if err != nil {
			return nil, nil, err
		}
		// Load the Redis Functions lua
		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("load redis functions: %w", err)
		}

		closers := []func(){func() { redisClient.Close() }}
		if cfg.ArchiveEnabled {
			pgDb, err := openPostgres(ctx, cfg)
			if err != nil {
				redisClient.Close()
				return nil, nil, fmt.Errorf("archive: %w", err)
			}
			closers = append(closers, func() { pgDb.Close() })

			// Background: stream tailer and scheduled item mirror
			syncbid.Run(ctx, redisClient, pgDb)
			if err := syncdb.Run(ctx, redisClient, pgDb, cfg.ArchiveSchedule); err != nil {
				pgDb.Close()
				redisClient.Close()
				return nil, nil, err
			}
			zap.L().Info("archive_enabled", zap.String("schedule", cfg.ArchiveSchedule))
		}
		return redisstore.New(redisClient), func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		return nil, fmt.Errorf("pg-open: %w", err)
	}
	if err := sqlstore.New(pgDb, sqlstore.Postgres).Migrate(ctx); err != nil {
		pgDb.Close()
		return nil, err
	}
	return pgDb, nil
}
