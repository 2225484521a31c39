package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/lock"
	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/router"
	"github.com/iliyamo/table-reservation/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		zl.Warn("redis unavailable; using local locks, in-process rate limiting and no cache", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer func() { _ = rdb.Close() }()
	}

	opts := scheduler.Options{
		Store:              store,
		Logger:             zl.Named("scheduler"),
		Location:           cfg.Location,
		MaxEdits:           cfg.Scheduler.MaxEdits,
		CombinationCeiling: cfg.Scheduler.CombinationCeiling,
		CheckInLead:        cfg.Scheduler.CheckInLead,
		LockTimeout:        cfg.Scheduler.LockTimeout,
		MaxAttempts:        cfg.Scheduler.MaxAttempts,
		RetryBackoff:       cfg.Scheduler.RetryBackoff,
		Locker:             newLocker(cfg, rdb, zl),
	}
	if cfg.Rabbit.URL != "" {
		opts.Publisher = queue.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Queue, zl.Named("publisher"))
		if cfg.Rabbit.ConsumerEnabled {
			consumer := &queue.Consumer{URL: cfg.Rabbit.URL, Queue: cfg.Rabbit.Queue, Dir: cfg.Rabbit.LogDir, Log: zl.Named("consumer")}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					zl.Error("reservation consumer stopped", zap.Error(err))
				}
			}()
		}
	}
	sched := scheduler.New(opts)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(logger.RequestLogger(zl.Named("http")))

	deps := router.Deps{
		Health:       health,
		Classes:      handler.NewTableClassHandler(sched),
		Reservations: handler.NewReservationHandler(sched),
		JWTSecret:    cfg.JWTSecret,
		Redis:        rdb,
		Cache:        cfg.Cache,
	}
	router.RegisterRoutes(e, deps)
	v1 := e.Group("/v1", middleware.NewTokenBucket(cfg.RateLimit, rdb))
	router.RegisterPublic(v1, deps)
	router.RegisterCustomer(v1, deps)
	router.RegisterStaff(v1, deps)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}

// openStore builds the configured scheduler store and the health check
// that goes with it.
func openStore(ctx context.Context, cfg config.Config, zl *zap.Logger) (scheduler.Store, handler.Health, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		mem := repository.NewMemoryStore()
		mem.SeedDefaultCatalog()
		zl.Info("using in-memory store with default catalog")
		return mem, handler.Health{}, func() {}, nil
	}

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return nil, handler.Health{}, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, handler.Health{}, nil, err
	}
	store := repository.NewMySQLStore(db)
	if cfg.SeedCatalog {
		seeded, err := store.SeedCatalog(ctx, repository.DefaultCatalog)
		if err != nil {
			_ = db.Close()
			return nil, handler.Health{}, nil, err
		}
		if seeded {
			zl.Info("seeded default table catalog")
		}
	}
	return store, handler.Health{Ping: db.PingContext}, func() { _ = db.Close() }, nil
}

// newLocker picks the booking lock backend.  The redis backend falls back
// to local locks when Redis is unreachable.
func newLocker(cfg config.Config, rdb *redis.Client, zl *zap.Logger) scheduler.Locker {
	if cfg.Scheduler.LockBackend == config.LockRedis {
		if rdb != nil {
			return lock.NewRedisLocker(rdb, "lock", cfg.Scheduler.LockTTL, 0, zl.Named("lock"))
		}
		zl.Warn("SCHED_LOCK_BACKEND=redis but redis is unavailable; using local locks")
	}
	return scheduler.NewKeyedMutex()
}
