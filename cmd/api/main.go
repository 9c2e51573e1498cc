package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/api"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/generation"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/queue"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/service"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "getravio-api",
		LogFile:     cfg.Log.File,
	})
	logger.SetDefault(appLogger)

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	// Initialize object storage
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

	// Initialize work queue
	workQueue, err := queue.New(ctx, &cfg.Queue)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize queue")
	}
	defer workQueue.Close()

	// Initialize event bus
	bus := events.NewBus(cfg.Queue.BufferSize, appLogger)

	// With the Redis queue, jobs execute in cmd/worker; consume its event
	// relay so websocket clients connected here still receive updates.
	if cfg.Queue.Driver == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPass,
			DB:       cfg.Queue.RedisDB,
		})
		defer rdb.Close()
		relay := events.NewRedisRelay(rdb, cfg.Queue.Key+":events", appLogger)
		go relay.Run(ctx, bus)
	}

	// Initialize services
	jobService := service.NewJobService(jobRepo, store, workQueue, &cfg.Storage, appLogger)

	// The in-memory queue only works when submitter and executor share a
	// process, so the API binary hosts the worker pool for that driver.
	// Redis deployments run cmd/worker separately.
	var executor *service.Executor
	if cfg.Queue.Driver == "memory" || cfg.Queue.Driver == "" {
		backend, err := generation.NewBackend(&cfg.Generation)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize generation backend")
		}
		executor = service.NewExecutor(jobRepo, store, workQueue, backend, bus,
			&cfg.Executor, &cfg.Generation, cfg.Storage.URLExpiry, appLogger)
		executor.Start(ctx)
	}

	// Setup router
	router := api.SetupRouter(cfg, jobService, tokenRepo, bus, store, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	cancel()
	if executor != nil {
		executor.Wait()
	}

	appLogger.Info("Server exited")
}
