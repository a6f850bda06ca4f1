package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enjaz/request-service/internal/api"
	"github.com/enjaz/request-service/internal/catalog"
	"github.com/enjaz/request-service/internal/config"
	"github.com/enjaz/request-service/internal/conversation"
	"github.com/enjaz/request-service/internal/db"
	"github.com/enjaz/request-service/internal/lifecycle"
	"github.com/enjaz/request-service/internal/metrics"
	"github.com/enjaz/request-service/internal/stats"
	"github.com/enjaz/request-service/internal/storage"
	"github.com/enjaz/request-service/internal/store"
	"github.com/enjaz/request-service/internal/store/memory"
	"github.com/enjaz/request-service/internal/store/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Ensure all log output goes to stdout so the container runtime captures it
	log.SetOutput(os.Stdout)

	log.Printf("Request Service starting (GIT_SHA=%s BUILD_TIME=%s)", os.Getenv("GIT_SHA"), os.Getenv("BUILD_TIME"))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, &cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer backend.Close()

	m := metrics.New()

	cache, closeCache := openCache(cfg)
	defer closeCache()
	cat := catalog.NewService(backend, cache, cfg.CatalogCacheTTL, m)
	if cfg.SeedCatalog {
		if _, err := cat.Seed(ctx); err != nil {
			log.Printf("[WARN] Catalog seed failed: %v", err)
		}
	}

	files, err := storage.NewAttachments(ctx, cfg.AttachmentsBucket, cfg.AWSRegion, cfg.AttachmentURLTTL)
	if err != nil {
		log.Printf("[WARN] Attachment storage disabled: %v", err)
		files = nil
	}

	handler := api.NewHandler(
		backend,
		cat,
		lifecycle.NewEngine(backend, lifecycle.WithMetrics(m)),
		conversation.New(backend, m),
		stats.NewAggregator(backend, backend),
		files,
	)

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}
	router := api.SetupRouter(handler, api.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Limiter:        api.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
		Metrics:        m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting request service on port %s (store=%s)", cfg.Port, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Println("Shutting down request service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Println("[WARN] Using in-memory store; data is lost on restart")
		return memory.New(), nil
	case config.BackendSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case config.BackendPostgres:
		if err := cfg.ResolveDatabaseURL(ctx, nil); err != nil {
			return nil, err
		}
		return db.NewDatabase(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openCache uses Redis when configured and falls back to an in-process cache.
func openCache(cfg config.Config) (catalog.Cache, func()) {
	if cfg.RedisAddr == "" {
		return catalog.NewMemoryCache(), func() {}
	}
	rdb, err := catalog.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("[WARN] Redis unavailable, using in-process catalog cache: %v", err)
		return catalog.NewMemoryCache(), func() {}
	}
	rc := catalog.NewRedisCache(rdb)
	return rc, func() {
		if err := rc.Close(); err != nil {
			log.Printf("[WARN] %v", err)
		}
	}
}
