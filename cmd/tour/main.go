package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tour-engine/internal/common/config"
	"tour-engine/internal/common/health"
	"tour-engine/internal/common/logger"
	"tour-engine/internal/common/middleware"
	"tour-engine/internal/tour/assets"
	"tour-engine/internal/tour/handlers"
	"tour-engine/internal/tour/repository"
	"tour-engine/internal/tour/service"
)

// ============================================================
// Tour Service
// ============================================================

const placeholderWidth = 1024

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "tour")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal("open db", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer db.Close()

	repo := repository.New(db)
	if err := repo.Init(context.Background()); err != nil {
		log.Fatal("init db", zap.Error(err))
	}

	checks := map[string]health.Check{
		"sqlite": db.PingContext,
	}

	var cache *assets.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		cache = assets.NewCache(rdb, cfg.AssetCacheTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	placeholder, err := loadPlaceholder(cfg.PlaceholderPanorama)
	if err != nil {
		log.Fatal("placeholder panorama", zap.Error(err))
	}

	store := assets.NewStore(cfg.AssetRoot)
	loader := assets.NewLoader(assets.Options{
		Store:       store,
		Remote:      assets.NewRemote(cfg.RemoteTimeout, cfg.RemoteRetries, log.Named("remote")),
		Cache:       cache,
		Placeholder: placeholder,
		Logger:      log.Named("assets"),
	})

	sessions := service.NewManager(repo, loader, service.Config{
		SessionTTL:    cfg.SessionTTL,
		FrameInterval: cfg.FrameInterval,
	}, log.Named("sessions"))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go sessions.Run(ctx)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Tour Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(log.Named("http")))
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	app.Get("/health/live", health.Liveness)
	app.Get("/health/ready", health.Readiness(checks))
	app.Get("/health/startup", health.Startup)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ============================================================
	// Tour Routes
	// ============================================================

	handlers.NewTourHandler(sessions, store, log.Named("handlers")).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	go func() {
		log.Info("starting tour service",
			zap.String("addr", addr),
			zap.String("env", cfg.Environment),
			zap.String("db", cfg.DBPath),
			zap.Bool("redis_cache", cache != nil),
		)
		if err := app.Listen(addr); err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", zap.Int("sessions", sessions.Len()))
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	stop()
	sessions.CloseAll()
}

// loadPlaceholder reads the configured placeholder or renders the built-in one.
func loadPlaceholder(path string) ([]byte, error) {
	if path == "" {
		return assets.PlaceholderPanorama(placeholderWidth)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return assets.PlaceholderPanorama(placeholderWidth)
	}
	return data, err
}
