package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/campus"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/clock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/config"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/database"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/keylock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/logging"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/routes"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	level, levelErr := logging.ParseLevel(cfg.LogLevel)
	stdoutHandler := logging.Setup(level)
	if levelErr != nil {
		slog.Warn("falling back to info logging", "error", levelErr)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()

	// Campus catalogue
	registry, err := campus.LoadFromFile(cfg.CampusSeedPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("campus seed file not found, using the stored catalogue", "path", cfg.CampusSeedPath)
	case err != nil:
		slog.Error("failed to load campus catalogue", "path", cfg.CampusSeedPath, "error", err)
		os.Exit(1)
	}

	// Store
	var (
		store        repository.Store
		db           *gorm.DB
		pgLogHandler *logging.PGHandler
	)
	cleanupDone := make(chan struct{})
	switch cfg.StoreDriver {
	case "postgres":
		db, err = database.Connect(cfg)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(db); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}

		// PostgreSQL log handler (ERROR+ async batch)
		pgLogHandler = logging.NewPGHandler(db)
		slog.SetDefault(slog.New(logging.NewMultiHandler(stdoutHandler, pgLogHandler)))
		logging.StartCleanup(db, logging.DefaultRetention, cleanupDone)

		store = repository.NewGormStore(db)
	case "memory":
		slog.Warn("using the in-memory store; data is lost on restart")
		store = repository.NewMemoryStore()
	}

	if registry != nil {
		if err := registry.Seed(ctx, store); err != nil {
			slog.Error("campus seed failed", "error", err)
			os.Exit(1)
		}
		sites, zones, incidents, staff := registry.Counts()
		slog.Info("campus catalogue seeded", "sites", sites, "zones", zones, "incident_types", incidents, "staff", staff)
	}

	// Authoritative clock
	loc, err := time.LoadLocation(cfg.ClockTimezone)
	if err != nil {
		slog.Error("unknown clock timezone", "timezone", cfg.ClockTimezone, "error", err)
		os.Exit(1)
	}
	clockDone := make(chan struct{})
	var clk clock.Clock = clock.NewSystem(loc)
	if cfg.ClockSource == "remote" {
		remote := clock.NewRemote(cfg.ClockURL, loc, cfg.ClockRefresh)
		syncCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := remote.Sync(syncCtx); err != nil {
			slog.Warn("initial remote clock sync failed, using system time until the next refresh", "error", err)
		}
		cancel()
		remote.Start(clockDone)
		clk = remote
	}

	metrics.Register()

	// Push transport and locks; Redis makes both span replicas
	hub := realtime.NewHub(cfg.NotifyBuffer, cfg.NotifyDedupeSize)
	var (
		publisher realtime.Publisher = hub
		locker    keylock.Locker     = keylock.NewLocal()
		rdb       *redis.Client
	)
	bridgeCtx, stopBridge := context.WithCancel(ctx)
	if cfg.RedisAddress != "" {
		rdb, err = database.ConnectRedis(ctx, cfg)
		if err != nil {
			slog.Error("redis unavailable, running as a single instance", "error", err)
			rdb = nil
		} else {
			locker = keylock.NewRedis(rdb, "campus-safety:lock:", 15*time.Second)
			bridge := realtime.NewRedisBridge(hub, rdb, realtime.DefaultChannel)
			go bridge.Run(bridgeCtx)
			publisher = bridge
		}
	}

	// Services
	exempt := make([]models.Role, 0, len(cfg.ExemptRoles()))
	for _, r := range cfg.ExemptRoles() {
		role := models.Role(r)
		if !role.Valid() {
			slog.Warn("ignoring unknown quota-exempt role", "role", r)
			continue
		}
		exempt = append(exempt, role)
	}
	limiter := services.NewRateLimiter(store, clk, cfg.DailyReportLimit, exempt)
	notifier := services.NewNotificationService(publisher, store)
	risk := services.NewZoneRiskService(store, locker, clk, notifier, services.ZoneRiskConfig{
		Thresholds: services.Thresholds{CautionAt: cfg.ZoneCautionAt, DangerAt: cfg.ZoneDangerAt},
		Window:     cfg.ZoneRiskWindow,
		CacheTTL:   cfg.ZoneCacheTTL,
	})
	lifecycle := services.NewLifecycleService(store, limiter, risk, notifier, locker, clk, services.LifecycleConfig{
		RejectTarget: models.ReportState(cfg.RejectTargetState),
	})

	sweepDone := make(chan struct{})
	risk.StartSweep(cfg.ZoneSweepInterval, sweepDone)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	clockSource := cfg.ClockSource
	routes.Setup(app, cfg, routes.Handlers{
		Reports:       handlers.NewReportHandler(lifecycle),
		Zones:         handlers.NewZoneHandler(risk),
		Quota:         handlers.NewQuotaHandler(limiter, clk, clockSource),
		Health:        handlers.NewHealthHandler(store, rdb, hub, risk),
		Notifications: handlers.NewNotificationHandler(hub, notifier),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "clock", clockSource, "redis", rdb != nil)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(sweepDone)
	close(clockDone)
	stopBridge()
	hub.Shutdown()

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if db != nil {
		if err := database.Close(db); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
