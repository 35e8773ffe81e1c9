package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnmap-backend/infrastructure/config"
	"learnmap-backend/infrastructure/di"
	"learnmap-backend/interfaces/http/rest"
	"learnmap-backend/interfaces/websocket"

	"go.uber.org/zap"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Start relaying persisted events to the event bus
	container.OutboxProcessor.Start(ctx)
	defer container.OutboxProcessor.Stop()

	// Wire the live diagram hub into the event bus so open maps
	// reconcile as domain events arrive
	hub := websocket.NewHub(
		container.MapRepo,
		container.SnapshotStore,
		container.LayoutEngine,
		container.DomainConfig,
		container.EventPublisher,
		container.Logger,
	)
	if err := hub.Register(container.EventBus); err != nil {
		log.Fatalf("Failed to register diagram hub: %v", err)
	}

	// Create router
	router := rest.NewRouter(
		container.CommandBus,
		container.QueryBus,
		container.CreateSubject,
		container.CreateMap,
		container.Orchestrator,
		hub,
		container.RateLimiter,
		container.Logger,
	)

	// Setup routes
	handler := router.Setup()

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	// Clean up resources
	if err := container.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
