package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cimillas/grabticket/internal/app"
	"github.com/cimillas/grabticket/internal/auth"
	"github.com/cimillas/grabticket/internal/clock"
	"github.com/cimillas/grabticket/internal/config"
	"github.com/cimillas/grabticket/internal/event/kafka"
	"github.com/cimillas/grabticket/internal/logging"
	"github.com/cimillas/grabticket/internal/realtime"
	"github.com/cimillas/grabticket/internal/storage/memory"
	"github.com/cimillas/grabticket/internal/storage/postgres"
	transporthttp "github.com/cimillas/grabticket/internal/transport/http"
	"github.com/cimillas/grabticket/migrations"
)

const serviceName = "grabticket"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

// stores groups the store-backed collaborators so both drivers wire the
// same way.
type stores struct {
	grab    app.GrabRepository
	catalog app.CatalogRepository
	outbox  interface {
		app.OutboxWriter
		kafka.OutboxStore
	}
	ping  transporthttp.Pinger
	close func()
}

func run() error {
	envPath, envErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		ServiceName: serviceName,
		Env:         cfg.AppEnv,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	switch {
	case envErr != nil:
		logger.Warn("failed to load .env", zap.Error(envErr))
	case envPath == "":
		logger.Debug(".env not found in current or parent directories")
	default:
		logger.Info("loaded env file", zap.String("path", envPath))
	}
	logger.Info("configuration loaded", cfg.Fields()...)

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := openStores(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	verifier, closeAuth, err := openVerifier(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAuth()

	clk := clock.NewSystem()
	var grabOpts []app.GrabServiceOption
	if cfg.OrderEventsEnabled() {
		grabOpts = append(grabOpts, app.WithOrderEvents(st.outbox, cfg.KafkaOrdersTopic))
	}
	grabSvc := app.NewGrabService(st.grab, clk, grabOpts...)
	catalogSvc := app.NewCatalogService(st.catalog, clk)

	registry := realtime.NewRegistry(grabSvc, logger)
	queue := app.NewGrabQueue(grabSvc, registry,
		app.WithQueueCapacity(cfg.GrabQueueCapacity),
		app.WithGrabTimeout(cfg.GrabTimeout),
		app.WithQueueLogger(logger),
	)
	queue.Start()

	var (
		dispatcher     *kafka.OutboxDispatcher
		dispatcherDone = make(chan struct{})
	)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	if cfg.OrderEventsEnabled() {
		dispatcher = kafka.NewOutboxDispatcher(logger, st.outbox, kafka.NewWriter(cfg.KafkaBrokers), kafka.DispatcherConfig{
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
			MaxRetries: cfg.OutboxMaxRetries,
		})
		go func() {
			defer close(dispatcherDone)
			_ = dispatcher.Run(dispatchCtx)
		}()
	} else {
		close(dispatcherDone)
		logger.Info("order events disabled, KAFKA_BROKERS not set")
	}

	origins := transporthttp.NewOriginPolicy(cfg.CORSOrigins)
	ws := transporthttp.NewWSHandler(verifier, registry, queue, logger, transporthttp.WSHandlerConfig{
		SendBuffer: cfg.WSSendBuffer,
		Origins:    origins,
	})
	handler := transporthttp.NewRouter(transporthttp.RouterDeps{
		Catalog:     catalogSvc,
		Admin:       catalogSvc,
		WS:          ws,
		Store:       st.ping,
		Origins:     origins,
		Logger:      logger,
	})

	// Live sockets hang off connCtx; cancelling it closes them with 1001.
	connCtx, cancelConns := context.WithCancel(context.Background())
	defer cancelConns()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return connCtx },
	}

	logger.Info("api listening", zap.String("addr", cfg.HTTPAddr))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	cancelConns()

	if err := queue.Stop(shutdownCtx); err != nil {
		logger.Error("grab queue did not drain", zap.Int("pending", queue.Len()), zap.Error(err))
	}

	stopDispatch()
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Warn("outbox dispatcher did not stop in time")
	}
	if dispatcher != nil {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("close kafka writer", zap.Error(err))
		}
	}

	logger.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on exit")
		store := memory.NewStore()
		return stores{
			grab:    store,
			catalog: store,
			outbox:  store,
			ping:    store,
			close:   func() {},
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return stores{}, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return stores{}, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("apply migrations: %w", err)
	}

	grabRepo := postgres.NewGrabRepository(pool)
	return stores{
		grab:    grabRepo,
		catalog: postgres.NewCatalogRepository(pool),
		outbox:  postgres.NewOutboxRepository(pool),
		ping:    grabRepo,
		close:   pool.Close,
	}, nil
}

func openVerifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (auth.Verifier, func(), error) {
	if cfg.AuthMode == config.AuthModeStatic {
		logger.Warn("using static auth tokens", zap.Int("tokens", len(cfg.AuthStaticTokens)))
		return auth.NewStaticVerifier(cfg.AuthStaticTokens), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis client", zap.Error(err))
		}
	}
	return auth.NewSessionVerifier(client, logger), closeFn, nil
}
