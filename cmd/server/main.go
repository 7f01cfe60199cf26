package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"nervecenter-backend/internal/cache"
	"nervecenter-backend/internal/config"
	"nervecenter-backend/internal/handlers"
	"nervecenter-backend/internal/hub"
	"nervecenter-backend/internal/natsbus"
	"nervecenter-backend/internal/storage"
	"nervecenter-backend/internal/workers"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable store. A failed connection degrades to in-memory only; the
	// store retries lazily on later writes.
	var store *storage.Storage
	if cfg.Database.URL != "" {
		store = storage.New(cfg.Database.URL)
		if !store.Connect(ctx) {
			log.Println("WARN Database unavailable at startup, continuing in degraded mode")
		} else if cfg.Database.CleanOnStartup {
			if err := store.Reset(ctx); err != nil {
				log.Printf("WARN Startup clean failed: %v", err)
			} else {
				log.Println("INFO Durable store cleaned on startup")
			}
		}
		defer store.Close()
	} else {
		log.Println("WARN No database configured, running in-memory only")
	}

	// Redis presence cache (optional).
	var presence cache.Client
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			log.Printf("WARN Redis unavailable, presence falls back to in-memory: %v", err)
		} else {
			presence = redisClient
			defer redisClient.Close()
		}
	}

	// NATS event bus (optional).
	var bus hub.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err := natsbus.Connect(cfg.NATS.URL)
		if err != nil {
			log.Printf("WARN NATS unavailable, event publishing disabled: %v", err)
		} else {
			bus = natsClient
			defer natsClient.Close()
		}
	}

	var persistence hub.Persistence
	if store != nil {
		persistence = store
	}
	h := hub.New(persistence, bus)

	// Background cycles.
	var checker workers.HealthChecker
	if store != nil {
		checker = store
	}
	workers.StartSystemHealthCycle(ctx, h, checker, cfg.Cycles.Interval)
	workers.StartHeartbeatReconciler(ctx, h, presence, cfg.Cycles.OfflineAfter, cfg.Cycles.Interval)

	var policy workers.PromotionPolicy
	if cfg.Ranking.Promotion {
		policy = workers.DefaultPromotionPolicy
	}
	workers.StartRankingCycle(ctx, h, cfg.Cycles.Interval, policy)

	// HTTP handlers
	var handlerStore handlers.Store
	if store != nil {
		handlerStore = store
	}
	api := handlers.New(h, handlerStore, presence, cfg.Redis.PresenceTTL)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	api.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}
