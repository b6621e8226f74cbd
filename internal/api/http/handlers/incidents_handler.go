package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// IncidentsHandler manages citizen-facing incident endpoints.
type IncidentsHandler struct {
	lifecycle *service.LifecycleService
	incidents *service.IncidentService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(lifecycle *service.LifecycleService, incidents *service.IncidentService) *IncidentsHandler {
	return &IncidentsHandler{lifecycle: lifecycle, incidents: incidents}
}

// Create POST /incidents.
func (h *IncidentsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.IncidentCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		ZoneID:       req.ZoneID,
		Priority:     req.Priority,
		LocationLat:  req.LocationLat,
		LocationLon:  req.LocationLon,
		LocationText: req.LocationText,
		IsPublic:     true,
	}
	if req.IsPublic != nil {
		input.IsPublic = *req.IsPublic
	}
	incident, err := h.lifecycle.Submit(c.UserContext(), principal.Actor(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": incidentSummary(incident)})
}

// ListPublic GET /incidents.
func (h *IncidentsHandler) ListPublic(c *fiber.Ctx) error {
	incidents, err := h.incidents.ListPublic(c.UserContext(), parseIncidentQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(incidents)})
}

// ListMine GET /incidents/mine.
func (h *IncidentsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	incidents, err := h.incidents.ListMine(c.UserContext(), principal.Actor(), parseIncidentQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(incidents)})
}

// Get GET /incidents/:id.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	detail, err := h.incidents.GetDetail(c.UserContext(), actorOrAnonymous(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentDetail(detail)})
}

// Transition PATCH /incidents/:id/status.
func (h *IncidentsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.lifecycle.ManualTransition(c.UserContext(), principal.Actor(), c.Params("id"), req.Status, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// AddComment POST /incidents/:id/comments.
func (h *IncidentsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.incidents.AddComment(c.UserContext(), principal.Actor(), c.Params("id"), req.Message, req.IsAnonymous)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// AttachPhoto POST /incidents/:id/photos. Accepts a multipart file field
// named "photo".
func (h *IncidentsHandler) AttachPhoto(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return apperrors.NewValidationError("photo file required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.MapError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return apperrors.MapError(err)
	}

	photo, err := h.incidents.AttachPhoto(c.UserContext(), principal.Actor(), c.Params("id"), fileHeader.Filename, data)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.PhotoResponse{
		ID:       photo.ID,
		FileName: photo.FileName,
		FileSize: photo.FileSize,
	}})
}

// Upvote POST /incidents/:id/upvote.
func (h *IncidentsHandler) Upvote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.incidents.Upvote(c.UserContext(), principal.Actor(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func summaries(incidents []domain.Incident) []dto.IncidentSummary {
	items := make([]dto.IncidentSummary, 0, len(incidents))
	for i := range incidents {
		items = append(items, incidentSummary(&incidents[i]))
	}
	return items
}

// actorOrAnonymous allows unauthenticated reads of public incidents.
func actorOrAnonymous(c *fiber.Ctx) domain.Actor {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.Actor()
	}
	return domain.Actor{ProfileID: "anonymous", Role: domain.RoleCitizen}
}

func parseIncidentQuery(c *fiber.Ctx) repository.IncidentFilter {
	filter := repository.IncidentFilter{}

	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.IncidentStatus(strings.TrimSpace(part)))
		}
	}
	if raw := c.Query("priority"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filter.Priorities = append(filter.Priorities, domain.IncidentPriority(strings.TrimSpace(part)))
		}
	}
	if zone := c.Query("zone_id"); zone != "" {
		filter.ZoneID = &zone
	}
	if category := c.Query("category_id"); category != "" {
		filter.CategoryID = &category
	}
	if search := c.Query("q"); search != "" {
		filter.SearchTerm = &search
	}
	if raw := c.Query("created_from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedFrom = &t
		}
	}
	if raw := c.Query("created_to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedTo = &t
		}
	}

	filter.Limit = 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	return filter
}
