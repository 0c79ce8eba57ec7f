package handlers

import (
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/dto"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/identity"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/models"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/repository"
	"github.com/ahmetcoskunkizilkaya/campus-safety/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	lifecycle *services.LifecycleService
}

func NewReportHandler(lifecycle *services.LifecycleService) *ReportHandler {
	return &ReportHandler{lifecycle: lifecycle}
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	report, err := h.lifecycle.CreateReport(c.UserContext(), actor, services.CreateReportInput{
		IncidentTypeID: req.IncidentTypeID,
		ZoneID:         req.ZoneID,
		Description:    req.Description,
		IsAnonymous:    req.IsAnonymous,
		ContactInfo:    req.ContactInfo,
		PhotoRef:       req.PhotoRef,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

// Transition applies one workflow operation to a report.
func (h *ReportHandler) Transition(c *fiber.Ctx) error {
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	reportID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid report ID")
	}

	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	mgmt, err := h.lifecycle.ApplyTransition(c.UserContext(), reportID, services.Operation(req.Operation), actor, services.TransitionPayload{
		Priority:       req.Priority,
		SecurityUserID: req.SecurityUserID,
		Note:           req.Note,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(mgmt)
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	reportID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid report ID")
	}

	report, err := h.lifecycle.GetReport(c.UserContext(), actor, reportID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (h *ReportHandler) ListMine(c *fiber.Ctx) error {
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	limit, offset := pagination(c)

	reports, total, err := h.lifecycle.ListMine(c.UserContext(), actor, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ListResponse{Items: reports, Total: total, Limit: limit, Offset: offset})
}

// ListAssigned is the security officer's work queue.
func (h *ReportHandler) ListAssigned(c *fiber.Ctx) error {
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	limit, offset := pagination(c)
	state := models.ReportState(c.Query("state"))

	reports, total, err := h.lifecycle.ListAssigned(c.UserContext(), actor, state, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ListResponse{Items: reports, Total: total, Limit: limit, Offset: offset})
}

func (h *ReportHandler) List(c *fiber.Ctx) error {
	actor, err := identity.GetActor(c)
	if err != nil {
		return unauthorized(c)
	}
	limit, offset := pagination(c)

	filter := repository.ReportFilter{
		State:    models.ReportState(c.Query("state")),
		Priority: models.Priority(c.Query("priority")),
		Limit:    limit,
		Offset:   offset,
	}
	if filter.ZoneID, err = queryUUID(c, "zone_id"); err != nil {
		return badRequest(c, "Invalid zone_id")
	}
	if filter.SiteID, err = queryUUID(c, "site_id"); err != nil {
		return badRequest(c, "Invalid site_id")
	}
	switch c.Query("anonymous") {
	case "":
	case "true":
		anon := true
		filter.Anonymous = &anon
	case "false":
		anon := false
		filter.Anonymous = &anon
	default:
		return badRequest(c, "anonymous must be true or false")
	}

	reports, total, err := h.lifecycle.ListReports(c.UserContext(), actor, filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ListResponse{Items: reports, Total: total, Limit: limit, Offset: offset})
}
