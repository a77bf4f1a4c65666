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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/tophand-tech/dayplan/backend/internal/config"
	"github.com/tophand-tech/dayplan/backend/internal/database"
	"github.com/tophand-tech/dayplan/backend/internal/handler"
	"github.com/tophand-tech/dayplan/backend/internal/lock"
	"github.com/tophand-tech/dayplan/backend/internal/logger"
	"github.com/tophand-tech/dayplan/backend/internal/memstore"
	"github.com/tophand-tech/dayplan/backend/internal/metrics"
	"github.com/tophand-tech/dayplan/backend/internal/notify"
	"github.com/tophand-tech/dayplan/backend/internal/quota"
	"github.com/tophand-tech/dayplan/backend/internal/repository"
	"github.com/tophand-tech/dayplan/backend/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	/**********************************************
	 * Load config
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	/**********************************************
	 * Create logger
	 **********************************************/
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	/**********************************************
	 * Open store
	 **********************************************/
	deps := scheduler.Dependencies{Logger: log}
	var (
		directory handler.Directory
		health    func(ctx context.Context) error
	)

	switch cfg.Scheduler.Store {
	case "memory":
		log.Warn("using the in-memory store, data is lost on restart")
		store := memstore.New()
		deps.Store, deps.Jobs, deps.Users = store, store, store
		directory = store
	default:
		dbpool, err := database.Open(cfg)
		if err != nil {
			return err
		}
		defer dbpool.Close()

		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(dbpool, log); err != nil {
				return err
			}
		}

		repo := repository.NewRepository(cfg, dbpool)
		deps.Store, deps.Jobs, deps.Users = repo, repo, repo
		directory = repo
		health = repo.Ping
	}

	/**********************************************
	 * Connect redis
	 **********************************************/
	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if cfg.Scheduler.LockBackend == "redis" {
		deps.Locker = lock.NewRedisLocker(rdb, time.Duration(cfg.Scheduler.LockTTL)*time.Millisecond)
	}

	var counterStore quota.CounterStore = quota.NewMemoryStore(nil)
	if cfg.Quota.Backend == "redis" {
		counterStore = quota.NewRedisStore(rdb)
	}
	limiter := quota.NewDailyCounter(counterStore, cfg.Quota.DailyMutations, quota.WithLocation(cfg.Location()))

	/**********************************************
	 * Connect rabbitmq
	 **********************************************/
	var notifier notify.Publisher = notify.NopPublisher{}
	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open channel: %w", err)
		}
		defer ch.Close()

		if _, err := notify.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
			return fmt.Errorf("failed to declare queue: %w", err)
		}

		notifier = notify.NewAMQPPublisher(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	} else {
		log.Warn("RABBITMQ_DSN is not set, notifications are disabled")
	}

	/**********************************************
	 * Create scheduler
	 **********************************************/
	recorder, err := metrics.NewPromRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	deps.Metrics = recorder

	sched, err := scheduler.New(scheduler.ParametersFromConfig(cfg), deps)
	if err != nil {
		return err
	}

	/**********************************************
	 * Create handler
	 **********************************************/
	h, err := handler.NewHandler(cfg, handler.Dependencies{
		Scheduler:      sched,
		Directory:      directory,
		Notifier:       notifier,
		Quota:          limiter,
		Metrics:        recorder,
		MetricsHandler: promhttp.Handler(),
		Health:         health,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	h.RegisterRoutes()

	/**********************************************
	 * Start HTTP server
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     zap.NewStdLog(log),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Scheduler.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	log.Info("server stopped")
	return nil
}
