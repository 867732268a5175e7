package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"radiance/backend/internal/models"
	"radiance/backend/pkg/config"
	"radiance/backend/pkg/di"
	"radiance/backend/pkg/health"
	"radiance/backend/pkg/logger"
	"radiance/backend/pkg/router"
	"radiance/backend/pkg/secrets"
	"radiance/backend/shared/observability"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting chat relay", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secretManager, err := secrets.NewVaultManager(secrets.ConfigFrom(cfg), log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	if err := secrets.Resolve(ctx, secretManager, cfg); err != nil {
		log.LogError(err, "Failed to resolve secrets")
		os.Exit(1)
	}

	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Observability.TracingEnabled {
		shutdownTracing, err = observability.SetupTracing(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Failed to initialize tracing")
			os.Exit(1)
		}
	}

	db, err := config.NewDB(cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(models.AutoMigrate()...); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	container, err := di.New(ctx, cfg, db, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	// Register the gRPC listener before the first check runs
	grpcServer, _ := health.NewGRPCServer(container.Health, cfg.Observability.ServiceName)
	container.Health.Start(ctx)

	r := router.New(container)
	if cfg.Server.OpenAPISchema != "" {
		r.AddOpenAPIValidation(cfg.Server.OpenAPISchema)
	}
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "HTTP server failed")
			stop()
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.LogError(err, "Failed to listen for gRPC health", "port", cfg.Server.GRPCPort)
		os.Exit(1)
	}
	go func() {
		log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.LogError(err, "gRPC health server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting work, then drain what is in flight.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	grpcServer.GracefulStop()
	r.Close()

	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release dependencies")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.LogError(err, "Failed to flush traces")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("Server exited gracefully")
}
