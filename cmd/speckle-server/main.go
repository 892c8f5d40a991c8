package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CanoaPBC/speckle-server/internal/logger"
	"github.com/CanoaPBC/speckle-server/internal/objects"
	"github.com/CanoaPBC/speckle-server/internal/server/api"
	"github.com/CanoaPBC/speckle-server/internal/store"
)

func main() {
	// Load configuration from environment
	dbPath := getEnv("SPECKLE_DB_PATH", "speckle.db")
	port := getEnv("PORT", "8080")
	maxBatchSize := getEnvInt("SPECKLE_MAX_BATCH_SIZE", objects.DefaultMaxBatchSize)

	logger.SetLogger(&logger.StderrLogger{})

	// Initialize SQLite repository
	ctx := context.Background()
	repo, err := store.NewSQLite(ctx, dbPath)
	if err != nil {
		log.Fatalf("Failed to open object store: %v", err)
	}
	defer repo.Close(ctx)

	log.Printf("Object store ready at %s", dbPath)

	svc := objects.NewService(repo, objects.WithMaxBatchSize(maxBatchSize))
	apiServer := api.New(svc)

	// Setup HTTP router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Routes
	apiServer.Routes(r)

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting speckle server on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}
