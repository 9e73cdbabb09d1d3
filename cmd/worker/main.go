package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/cloudconsole/engine/internal/bootstrap"
	"github.com/cloudconsole/engine/internal/queue/tasks"
	"github.com/cloudconsole/engine/pkg/config"
	"github.com/cloudconsole/engine/pkg/logger"
)

// The worker runs apply jobs enqueued by the api when DISPATCHER=asynq. It must share
// WORKING_DIR, LOGS_DIR and the database with the api, and TRACKER_STORE must be database.
func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	rdb := bootstrap.NewRedis(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	_ = rdb.Close()

	engine, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}
	defer engine.Close()

	// the worker only runs jobs, it never dispatches
	svc := engine.Service(nil)

	srv := asynq.NewServer(
		bootstrap.RedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
			Logger:      log.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	tasks.NewProvisionTaskHandler(svc).Register(mux)

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	srv.Shutdown()
}
