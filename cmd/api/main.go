package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orcamentos_backend/internal/events"
	apphttp "orcamentos_backend/internal/http"
	"orcamentos_backend/internal/http/router"
	"orcamentos_backend/internal/quotes"
	"orcamentos_backend/internal/quotes/repository"
	"orcamentos_backend/internal/quotes/service"
	"orcamentos_backend/internal/scheduler"
	"orcamentos_backend/platform/config"
	"orcamentos_backend/platform/db"
	"orcamentos_backend/platform/idempotency"
	"orcamentos_backend/platform/logger"
	"orcamentos_backend/platform/redisx"
	"orcamentos_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

type storage struct {
	store  service.Store
	refs   service.References
	health apphttp.HealthChecker
	close  func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	st := initStorage(ctx, cfg, log)
	defer st.close()

	eventBus := events.NewInMemoryBus(log)

	var redisClient *redis.Client
	if cfg.GetRedisURL() != "" {
		if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
			c, err := redisx.NewClient(ctx, cfg)
			if err != nil {
				return err
			}
			redisClient = c
			return nil
		}); err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("redis connection established")
	} else {
		log.Warn("REDIS_URL not configured; request deduplication is process-local and quote events stay in process")
	}

	guard := initGuard(cfg, redisClient, log)

	closeScheduler := initEventForwarding(cfg, eventBus, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	val := validator.New()
	quotesModule := quotes.NewModule(st.store, st.refs, guard, eventBus, val, log)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   st.health,
		EventBus: eventBus,
		Modules:  []apphttp.Module{quotesModule},
	}

	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
		log.Info("server stopped")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage {
	if cfg.UsesMemoryStorage() {
		mem := repository.NewMemory()
		mem.PutCompany(1, "Empresa Demo", true)
		mem.PutClient(1, 1, "Cliente Demo", true)
		log.Warn("using in-memory quote storage; data is lost on restart")
		return storage{store: mem, refs: mem, close: func() {}}
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		pool.Close()
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	return storage{
		store:  repository.New(pool),
		refs:   repository.NewReferenceReader(pool),
		health: db.NewPoolAdapter(pool),
		close:  pool.Close,
	}
}

func initGuard(cfg *config.Config, client *redis.Client, log *logger.Logger) idempotency.Guard {
	if client == nil {
		return idempotency.NewMemoryGuard(cfg.GetIdempotencyTTL())
	}
	return idempotency.NewRedisGuard(client, cfg.GetIdempotencyTTL(), log)
}

func initEventForwarding(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) func() {
	if cfg.GetRedisURL() == "" {
		return nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client; quote events stay in process", "error", err)
		return nil
	}

	scheduler.NewQuoteEventForwarder(client, log).RegisterHandlers(bus)
	log.Info("quote events forwarded to task queue", "queue", client.Queue())

	return func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
