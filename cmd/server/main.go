package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "weather-client/internal/api/http"
	"weather-client/internal/cache"
	"weather-client/internal/config"
	"weather-client/internal/geo"
	"weather-client/internal/prefs"
	"weather-client/internal/scheduler"
	"weather-client/internal/weather"
	"weather-client/internal/weather/openweather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Preference store; a broken database degrades to defaults.
	store, err := prefs.Open(cfg.DBPath)
	if err != nil {
		log.Printf("WARN: preference store unavailable, using defaults: %v", err)
	}
	defer store.Close()

	// Observation cache with configured retention.
	memCache := cache.NewMemory(cfg.CacheMaxHistory, cfg.CacheMaxAge)

	// Upstream client and fetch orchestrator.
	client := openweather.NewClient(httpClient, cfg.OpenWeatherAPIKey)
	service := weather.NewService(client, store, memCache)
	service.SetRetryPolicy(cfg.MaxRetries, cfg.RetryDelay)

	// Location resolution: IP-based fix plus reverse geocoding.
	locator := geo.NewLocator(httpClient)
	var resolver geo.Resolver = client
	if cfg.GeocoderAPIKey != "" {
		resolver = geo.NewGoogleResolver(cfg.GeocoderAPIKey)
	}

	// Periodic refresh of the last search.
	sched := scheduler.New(store, service, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-client",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
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

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-client",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, store, locator, resolver)

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
