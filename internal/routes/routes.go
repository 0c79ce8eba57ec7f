package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/config"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Reports       *handlers.ReportHandler
	Zones         *handlers.ZoneHandler
	Quota         *handlers.QuotaHandler
	Health        *handlers.HealthHandler
	Notifications *handlers.NotificationHandler
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Public
	api.Get("/health", h.Health.Check)
	api.Get("/time", h.Quota.Time)

	auth := middleware.JWTProtected(cfg)

	api.Get("/quota", auth, h.Quota.Status)

	// Reports
	api.Post("/reports", auth, h.Reports.Create)
	api.Get("/reports/mine", auth, h.Reports.ListMine)
	api.Get("/reports/:id", auth, h.Reports.Get)
	api.Post("/reports/:id/transitions", auth, h.Reports.Transition)
	api.Get("/reports", auth, middleware.RequireRoles(models.RoleAdmin), h.Reports.List)

	// Security officers' work queue
	api.Get("/security/reports", auth, middleware.RequireRoles(models.RoleSecurity), h.Reports.ListAssigned)

	// Zones
	api.Get("/zones", auth, h.Zones.List)
	api.Get("/zones/:id", auth, h.Zones.Get)

	admin := api.Group("/admin", auth, middleware.RequireRoles(models.RoleAdmin))
	admin.Post("/zones/recompute", h.Zones.Recompute)

	// Push notifications; the token may be passed as ?token= on the upgrade
	app.Get("/ws/notifications", auth, h.Notifications.Upgrade, h.Notifications.Stream())
}
