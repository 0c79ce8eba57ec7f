package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/clock"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/dto"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/identity"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/services"
	"github.com/gofiber/fiber/v2"
)

type QuotaHandler struct {
	limiter *services.RateLimiter
	clock   clock.Clock
	source  string
}

func NewQuotaHandler(limiter *services.RateLimiter, clk clock.Clock, source string) *QuotaHandler {
	return &QuotaHandler{limiter: limiter, clock: clk, source: source}
}

func (h *QuotaHandler) Status(c *fiber.Ctx) error {
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	status, err := h.limiter.Status(c.UserContext(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(status)
}

// Time returns the authoritative server date, used by clients to show when
// their daily quota resets.
func (h *QuotaHandler) Time(c *fiber.Ctx) error {
	now := h.clock.Now()
	return c.JSON(dto.TimeResponse{
		Now:      now.Format(time.RFC3339),
		Date:     clock.DateOf(now).String(),
		TimeZone: now.Location().String(),
		Source:   h.source,
	})
}
