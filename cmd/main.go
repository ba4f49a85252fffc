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

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "shoppinglist/docs"
	"shoppinglist/internal/caching"
	"shoppinglist/internal/common"
	"shoppinglist/internal/config"
	"shoppinglist/internal/handlers"
	"shoppinglist/internal/jobs/background"
	"shoppinglist/internal/middleware"
	"shoppinglist/internal/repositories"
	"shoppinglist/internal/seed"
	"shoppinglist/internal/services"
	"shoppinglist/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Cache is optional
	cacheSvc := caching.NewNoopCacheService()
	if cfg.CacheEnabled() {
		cacheSvc = caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	} else {
		log.Printf("WARN: REDIS_ADDR not set, aggregate cache disabled")
	}

	var minioSvc services.MinioService
	if cfg.StorageEnabled() {
		minioSvc, err = services.NewMinioService(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if err != nil {
			log.Fatalf("Failed to initialize MinIO service: %v", err)
		}
	} else {
		log.Printf("WARN: MINIO_ENDPOINT not set, export publishing disabled")
	}

	itemRepo := repositories.NewShoppingItemRepo(pool)
	itemSvc := services.NewShoppingItemService(itemRepo, cacheSvc, cfg.Redis.CacheTTL.Duration)
	exportSvc := services.NewExportService(itemSvc, minioSvc, cfg.Minio.Bucket)

	if cfg.Seed.Enabled {
		if _, err := seed.Load(ctx, itemSvc); err != nil {
			log.Printf("WARN: failed to load sample data: %v", err)
		}
	}

	auth, err := middleware.NewAuthenticator(ctx, middleware.AuthConfig{
		Secret:  cfg.Auth.JWTSecret,
		JWKSURL: cfg.Auth.JWKSURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize authentication: %v", err)
	}
	defer auth.Close()
	if auth == nil {
		log.Printf("WARN: JWT_SECRET and JWKS_URL not set, write routes are unauthenticated")
	}

	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, version)

	if interval := cfg.Jobs.SnapshotInterval.Duration; interval > 0 {
		if !exportSvc.StorageEnabled() {
			log.Printf("WARN: SNAPSHOT_INTERVAL set but export storage is disabled, snapshots will not run")
		} else {
			scheduler, err := background.NewJobScheduler(exportSvc, interval, services.FormatJSON)
			if err != nil {
				log.Fatalf("Failed to create job scheduler: %v", err)
			}
			healthHandlers.WithJobStatus(scheduler)
			scheduler.Start()
			defer func() {
				if err := scheduler.Stop(); err != nil {
					log.Printf("WARN: scheduler shutdown: %v", err)
				}
			}()
		}
	}

	e := newServer(
		handlers.NewShoppingItemHandlers(itemSvc, exportSvc),
		healthHandlers,
		auth.Middleware()...,
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARN: server shutdown: %v", err)
		}
	}()

	log.Printf("Shopping list server v%s starting on port %d", version, cfg.Server.Port)
	if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server stopped unexpectedly: %v", err)
	}
	log.Printf("Server stopped")
}

// newServer wires middleware and routes. Item routes are served under both
// /api/items and /items.
func newServer(itemHandlers *handlers.ShoppingItemHandlers, healthHandlers *handlers.HealthHandlers, write ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = common.HTTPErrorHandler

	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(middleware.VersionHeader(version))

	healthHandlers.RegisterRoutes(e)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	itemHandlers.RegisterRoutes(e.Group("/api/items"), write...)
	itemHandlers.RegisterRoutes(e.Group("/items"), write...)

	return e
}
