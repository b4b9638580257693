package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/suriekke/shopeasy2-sub000/internal/config"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "shopeasy-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker, err := notify.NewWorker(notify.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Queue:   cfg.Notify.Queue,
		Handler: notify.NewHandler(notify.NewLogDeliverer(log), log),
	})
	if err != nil {
		log.Error(ctx, "init worker", err)
		os.Exit(1)
	}

	log.Info(log.WithField(ctx, "queue", cfg.Notify.Queue), "worker.starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "worker stopped", err)
		os.Exit(1)
	}
	log.Info(context.Background(), "worker.stopped")
}
