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

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/suriekke/shopeasy2-sub000/internal/auth"
	"github.com/suriekke/shopeasy2-sub000/internal/cart"
	"github.com/suriekke/shopeasy2-sub000/internal/catalog"
	"github.com/suriekke/shopeasy2-sub000/internal/config"
	"github.com/suriekke/shopeasy2-sub000/internal/database"
	"github.com/suriekke/shopeasy2-sub000/internal/httpapi"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/metrics"
	"github.com/suriekke/shopeasy2-sub000/internal/notify"
	"github.com/suriekke/shopeasy2-sub000/internal/orders"
	"github.com/suriekke/shopeasy2-sub000/internal/pricing"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
	"github.com/suriekke/shopeasy2-sub000/internal/store"
	"github.com/suriekke/shopeasy2-sub000/internal/store/memory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		ServiceName: "shopeasy-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	rule, err := pricing.NewFlatRate(cfg.Pricing)
	if err != nil {
		return err
	}

	sink, closeSink := newSink(cfg, log)
	defer closeSink()

	m := metrics.New(prometheus.NewRegistry())
	engine := orders.NewEngine(st, rule, sink, orders.Options{
		PricingTimeout: cfg.Pricing.Timeout,
		NotifyTimeout:  cfg.Notify.Timeout,
		Logger:         log,
		Metrics:        m,
	})

	authSvc := auth.NewService(
		auth.NewOTPStore(rdb, cfg.OTP.TTL, cfg.OTP.MaxAttempts),
		auth.NewSessionStore(rdb, cfg.Session.TTL),
		st.Users(),
		auth.NewLogSender(log),
		cfg.OTP.CodeLength,
		log,
	)

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Logger:            log,
			Metrics:           m,
			Store:             st,
			Catalog:           catalog.NewService(st.Catalog(), log),
			Cart:              cart.NewService(st, log),
			Orders:            engine,
			Auth:              authSvc,
			RequestTimeout:    cfg.Server.RequestTimeout,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			OTPPerMinute:      cfg.RateLimit.OTPPerMinute,
			Production:        cfg.App.IsProd(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(log.WithFields(gctx, map[string]any{
			"port":   cfg.Server.Port,
			"store":  cfg.Store.Driver,
			"notify": cfg.Notify.Mode,
		}), "server.starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info(shutdownCtx, "server.shutting_down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		return memory.New(), nil
	}

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(ctx, db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store.New(db), nil
}

func newSink(cfg *config.Config, log *logger.Logger) (notify.Sink, func()) {
	if cfg.Notify.Mode != config.NotifyModeQueue {
		return notify.NewLogSink(log), func() {}
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	sink := notify.Multi{notify.NewLogSink(log), notify.NewQueueSink(client, cfg.Notify.Queue)}
	return sink, func() {
		if err := client.Close(); err != nil {
			log.Warn(context.Background(), "asynq client close", err)
		}
	}
}
