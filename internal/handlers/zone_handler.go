package handlers

import (
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/dto"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ZoneHandler struct {
	risk *services.ZoneRiskService
}

func NewZoneHandler(risk *services.ZoneRiskService) *ZoneHandler {
	return &ZoneHandler{risk: risk}
}

func (h *ZoneHandler) List(c *fiber.Ctx) error {
	siteID, err := queryUUID(c, "site_id")
	if err != nil {
		return badRequest(c, "Invalid site_id")
	}
	zones, err := h.risk.ListZones(c.UserContext(), siteID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"zones": zones})
}

func (h *ZoneHandler) Get(c *fiber.Ctx) error {
	zoneID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid zone ID")
	}
	zone, err := h.risk.GetZoneStatus(c.UserContext(), zoneID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(zone)
}

// Recompute runs an on-demand sweep over every zone.
func (h *ZoneHandler) Recompute(c *fiber.Ctx) error {
	n, err := h.risk.RecomputeAll(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.RecomputeResponse{Recomputed: n})
}
