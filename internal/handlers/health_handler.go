package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/dto"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/realtime"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	store repository.Store
	rdb   *redis.Client
	hub   *realtime.Hub
	risk  *services.ZoneRiskService
}

// NewHealthHandler builds the health probe. rdb may be nil when Redis is not
// configured.
func NewHealthHandler(store repository.Store, rdb *redis.Client, hub *realtime.Hub, risk *services.ZoneRiskService) *HealthHandler {
	return &HealthHandler{store: store, rdb: rdb, hub: hub, risk: risk}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	storeStatus := "ok"
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	redisStatus := ""
	if h.rdb != nil {
		redisStatus = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy: " + err.Error()
			status = "degraded"
		}
	}

	code := fiber.StatusOK
	if storeStatus != "ok" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(dto.HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Store:       storeStatus,
		Redis:       redisStatus,
		Subscribers: h.hub.Count(),
		StaleZones:  h.risk.StaleCount(),
	})
}
