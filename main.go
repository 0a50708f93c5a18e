package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todo-app/api"
	"todo-app/auth"
	"todo-app/config"
	"todo-app/domain"
	"todo-app/events"
	"todo-app/ratelimit"
	"todo-app/storage"
	"todo-app/telemetry"
)

const serviceName = "todo-app"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Exporter:    cfg.TracesExporter,
	})
	if err != nil {
		logger.Fatalf("telemetry: %v", err)
	}

	backend := storage.Backend(cfg.StorageConnectionString)
	raw, err := storage.Open(ctx, storage.Options{
		ConnectionString: cfg.StorageConnectionString,
		Database:         cfg.StorageDatabase,
		UsersTable:       cfg.UsersTable,
		TasksTable:       cfg.TasksTable,
	})
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	store := storage.NewTraced(raw, backend, tp)
	logger.WithField("backend", backend).Info("storage.ready")

	tokens, err := auth.NewTokens([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		logger.Fatalf("tokens: %v", err)
	}

	var publisher domain.Publisher = events.NewLogPublisher(logger)
	if cfg.EventsQueueConnectionString != "" {
		qp, err := events.NewQueuePublisher(ctx, cfg.EventsQueueConnectionString, cfg.EventsQueue, logger)
		if err != nil {
			logger.Fatalf("events queue: %v", err)
		}
		publisher = qp
	}

	var limiter middleware.RateLimiterStore
	if cfg.RedisConnectionString != "" {
		opts, err := ratelimit.ParseRedisOptions(cfg.RedisConnectionString)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()
		limiter = ratelimit.NewFailOpen(ratelimit.NewRedisStore(rc, cfg.RateLimitRequests, cfg.RateLimitWindow), logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e, err := api.New(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Accounts: domain.NewAccounts(store, domain.WithAccountEvents(publisher), domain.WithAccountsLogger(logger)),
		Tasks:    domain.NewTasks(store, domain.WithMaxTake(cfg.MaxPageSize), domain.WithTaskEvents(publisher)),
		Tokens:   tokens,
		Limiter:  limiter,
		Registry: reg,
	})
	if err != nil {
		logger.Fatalf("server: %v", err)
	}

	go func() {
		logger.WithFields(log.Fields{"addr": cfg.Addr(), "env": cfg.Env}).Info("http.listening")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown.started")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown.http")
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown.storage")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown.telemetry")
	}
	logger.Info("shutdown.complete")
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stdout)
	if cfg.Production() {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
