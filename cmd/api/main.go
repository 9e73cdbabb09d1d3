package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudconsole/engine/internal/api"
	"github.com/cloudconsole/engine/internal/api/handlers"
	"github.com/cloudconsole/engine/internal/bootstrap"
	"github.com/cloudconsole/engine/internal/queue"
	"github.com/cloudconsole/engine/pkg/config"
	"github.com/cloudconsole/engine/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting deployment engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("dispatcher", cfg.Dispatcher),
		zap.String("tracker_store", cfg.TrackerStore),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	engine, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}
	defer engine.Close()

	checks := []handlers.Check{{Name: "database", Fn: engine.PingDB}}

	var dispatcher queue.Dispatcher
	var local *queue.Local
	switch cfg.Dispatcher {
	case "asynq":
		rdb := bootstrap.NewRedis(cfg)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		checks = append(checks, handlers.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		dispatcher = queue.NewAsynq(bootstrap.RedisOpt(cfg), "")
	default:
		local = queue.NewLocal(nil)
		dispatcher = local
	}

	svc := engine.Service(dispatcher)
	if local != nil {
		local.SetApplier(svc)
	}

	if len(cfg.JWTSecret) == 0 {
		log.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	router := api.NewRouter(ctx, api.Dependencies{
		Service:    svc,
		HMACSecret: []byte(cfg.JWTSecret),
		Checks:     checks,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Destroy runs synchronously, so writes may take as long as the tool does.
		WriteTimeout: cfg.ApplyTimeout + time.Minute,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error("dispatcher shutdown error", zap.Error(err))
	}
	stop()
	log.Info("server exited")
}
