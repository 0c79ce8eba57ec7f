package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/dto"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/services"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:        fiber.StatusBadRequest,
	services.KindQuotaExceeded:     fiber.StatusTooManyRequests,
	services.KindInvalidTransition: fiber.StatusConflict,
	services.KindMissingPriority:   fiber.StatusUnprocessableEntity,
	services.KindForbidden:         fiber.StatusForbidden,
	services.KindStoreUnavailable:  fiber.StatusServiceUnavailable,
	services.KindNotFound:          fiber.StatusNotFound,
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	if code, ok := statusByKind[services.KindOf(err)]; ok {
		return code
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	kind := services.KindOf(err)
	message := err.Error()

	var serr *services.Error
	if errors.As(err, &serr) {
		message = serr.Message
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "component", "http", "request_id", requestID(c), "method", c.Method(), "path", c.Path(), "error", err)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		if code == fiber.StatusInternalServerError {
			message = "Internal server error"
		}
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
		Kind:    string(kind),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message, Kind: string(services.KindValidation),
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func pagination(c *fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
