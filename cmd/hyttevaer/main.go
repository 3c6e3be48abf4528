package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpapi "github.com/hallgrim/hyttevaer/internal/api/http"
	"github.com/hallgrim/hyttevaer/internal/config"
	"github.com/hallgrim/hyttevaer/internal/dashboard"
	"github.com/hallgrim/hyttevaer/internal/dashboard/sources"
	"github.com/hallgrim/hyttevaer/internal/scheduler"
	"github.com/hallgrim/hyttevaer/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg)

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Redis when configured, in-memory otherwise. An unreachable Redis is
	// not fatal: reads degrade to synchronous refreshes.
	var cacheStore dashboard.Store
	if cfg.RedisAddr != "" {
		rs := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rs.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; continuing degraded")
		}
		cancel()
		defer rs.Close()
		cacheStore = rs
	} else {
		cacheStore = store.NewMemoryStore()
	}

	creds := sources.NewCredentialProvider(httpClient, cfg.Sensor.TokenURL, cfg.Sensor.ClientID, cfg.Sensor.ClientSecret)

	srcs := []dashboard.Source{
		sources.NewSensorSource(httpClient, creds, cfg.Sensor.BaseURL, cfg.Sensor.DeviceID),
		sources.NewResortSource(httpClient, cfg.Resort.ConditionsURL, cfg.Resort.APIKey),
		sources.NewForecastSource(httpClient, sources.ForecastConfig{
			BaseURL:    cfg.Forecast.BaseURL,
			Lat:        cfg.Forecast.Lat,
			Lon:        cfg.Forecast.Lon,
			UserAgent:  cfg.Forecast.UserAgent,
			StepHours:  cfg.Forecast.StepHours,
			MaxEntries: cfg.Forecast.MaxEntries,
		}),
	}

	service := dashboard.NewService(cacheStore, srcs, dashboard.ServiceConfig{
		SnapshotTTL:      cfg.SnapshotTTL,
		FetchTimeout:     cfg.FetchTimeout,
		HistoryMaxPoints: cfg.HistoryMaxPoints,
	})

	// The canonical refresh trigger is an external cron hitting
	// POST /refresh; the built-in interval is opt-in.
	if cfg.ScheduleEnabled {
		sched := scheduler.New(service, cfg.ScheduleInterval)
		if err := sched.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "hyttevaer",
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
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware. The consumer is a static browser page with no
	// cookie session, so CORS stays permissive.
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "hyttevaer",
		})
	})

	httpapi.RegisterRoutes(app, service, cfg.RefreshSecret)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("hyttevaer listening")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func setupLogging(cfg *config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
