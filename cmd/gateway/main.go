package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"

	"tour-engine/internal/common/config"
	"tour-engine/internal/common/health"
	"tour-engine/internal/common/logger"
	"tour-engine/internal/common/middleware"
	"tour-engine/internal/gateway/proxy"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "gateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		AppName:      "Tour Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(log))
	app.Use(middleware.CORS())

	// ============================================================
	// Health Check Routes
	// ============================================================

	tour := proxy.New(cfg.TourURL, "/api/v1", time.Duration(cfg.WriteTimeout)*time.Second, log)

	app.Get("/health/live", health.Liveness)
	app.Get("/health/ready", health.Readiness(map[string]health.Check{
		"tour": func(ctx context.Context) error { return ping(ctx, tour.Target("/api/v1/health/live", "")) },
	}))
	app.Get("/health/startup", health.Startup)

	// ============================================================
	// API Routes
	// ============================================================

	api := app.Group("/api/v1")

	api.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Tour Gateway v1",
			"status":  "ok",
		})
	})

	// Tour Service
	api.All("/*", tour.Handler())

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	go func() {
		log.Info("starting gateway", zap.String("addr", addr), zap.String("env", cfg.Environment), zap.String("tour_url", cfg.TourURL))
		if err := app.Listen(addr); err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
