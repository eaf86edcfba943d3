package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kelvins/geocoder"
	"github.com/sirupsen/logrus"

	httpapi "github.com/i474232898/temper/internal/api/http"
	"github.com/i474232898/temper/internal/config"
	"github.com/i474232898/temper/internal/forecast"
	"github.com/i474232898/temper/internal/history"
	"github.com/i474232898/temper/internal/scheduler"
	"github.com/i474232898/temper/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.GeocoderAPIKey != "" {
		geocoder.ApiKey = cfg.GeocoderAPIKey
	}

	// Shared HTTP client for outbound Open-Meteo calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	historyClient := history.NewClient(httpClient)

	// In-memory run store with configured retention.
	runStore := store.NewRunStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Forecasting core.
	orch := forecast.NewOrchestrator(cfg.Models, log)
	orch.PerModelTimeout = cfg.PerModelTimeout
	orch.PoolSize = cfg.PoolSize
	pipeline := forecast.NewPipeline(orch, log)

	// Scheduler that periodically refreshes forecasts per location.
	sched := scheduler.New(scheduler.Config{
		Locations:      cfg.Locations,
		Interval:       cfg.RefreshInterval,
		HistoricalDays: cfg.HistoricalDays,
		Horizon:        cfg.Horizon,
		Kinds:          cfg.Kinds,
	}, pipeline, historyClient, runStore, log)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "temper",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "temper",
		})
	})

	httpapi.RegisterRoutes(app, &httpapi.Handler{
		Pipeline: pipeline,
		Store:    runStore,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
