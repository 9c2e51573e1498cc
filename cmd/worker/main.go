package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/generation"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/queue"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/service"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/storage"
)

// The worker binary runs the executor pool against a shared queue. It is
// meant for Redis-backed deployments where submission and execution are
// separate processes; events are relayed over a Redis channel so websocket
// clients held by the API process still receive them.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "getravio-worker",
		LogFile:     cfg.Log.File,
	})
	logger.SetDefault(appLogger)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	jobRepo := repository.NewJobRepository(db)

	store, err := storage.NewStore(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if s3Store, ok := store.(*storage.S3Store); ok {
		if err := s3Store.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	workQueue, err := queue.New(ctx, &cfg.Queue)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize queue")
	}
	defer workQueue.Close()

	backend, err := generation.NewBackend(&cfg.Generation)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize generation backend")
	}

	var publisher events.Publisher = events.NewBus(cfg.Queue.BufferSize, appLogger)
	if cfg.Queue.Driver == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPass,
			DB:       cfg.Queue.RedisDB,
		})
		defer rdb.Close()
		publisher = events.NewRedisRelay(rdb, cfg.Queue.Key+":events", appLogger)
	}

	executor := service.NewExecutor(jobRepo, store, workQueue, backend, publisher,
		&cfg.Executor, &cfg.Generation, cfg.Storage.URLExpiry, appLogger)
	executor.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down worker...")
	cancel()
	executor.Wait()

	if unloader, ok := backend.(generation.Unloader); ok {
		if err := unloader.Unload(); err != nil {
			appLogger.WithError(err).Warn("Failed to unload backend")
		}
	}

	appLogger.Info("Worker exited")
}
