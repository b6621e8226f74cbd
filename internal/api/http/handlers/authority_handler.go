package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// AuthorityHandler manages authority-side endpoints: the work queue,
// assignment acceptance, triage and responses.
type AuthorityHandler struct {
	lifecycle  *service.LifecycleService
	acceptance *service.AcceptanceService
	incidents  *service.IncidentService
}

// NewAuthorityHandler constructs handler.
func NewAuthorityHandler(lifecycle *service.LifecycleService, acceptance *service.AcceptanceService, incidents *service.IncidentService) *AuthorityHandler {
	return &AuthorityHandler{lifecycle: lifecycle, acceptance: acceptance, incidents: incidents}
}

// Queue GET /authority/queue.
func (h *AuthorityHandler) Queue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	assignments, err := h.incidents.ListUnitQueue(c.UserContext(), principal.Actor())
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		items = append(items, assignmentResponse(&assignments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Accept POST /assignments/:id/accept.
func (h *AuthorityHandler) Accept(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	assignment, err := h.acceptance.Accept(c.UserContext(), principal.Actor(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// Reject POST /assignments/:id/reject.
func (h *AuthorityHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RejectAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	assignment, err := h.acceptance.Reject(c.UserContext(), principal.Actor(), c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// Retriage POST /incidents/:id/retriage.
func (h *AuthorityHandler) Retriage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RetriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	incident, err := h.lifecycle.Retriage(c.UserContext(), principal.Actor(), c.Params("id"), service.RetriageInput{
		Priority:   req.Priority,
		CategoryID: req.CategoryID,
		ZoneID:     req.ZoneID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentSummary(incident)})
}

// Assign POST /incidents/:id/assign.
func (h *AuthorityHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	assignment, err := h.lifecycle.AssignFromTriage(c.UserContext(), principal.Actor(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// AddResponse POST /incidents/:id/responses.
func (h *AuthorityHandler) AddResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	response, err := h.incidents.AddResponse(c.UserContext(), principal.Actor(), c.Params("id"), req.Message, req.MediaPaths)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": responseResponse(response)})
}

// ListTriage GET /authority/triage lists submitted incidents awaiting triage.
func (h *AuthorityHandler) ListTriage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseIncidentQuery(c)
	if len(filter.Statuses) == 0 {
		filter.Statuses = []domain.IncidentStatus{domain.IncidentStatusSubmitted}
	}
	incidents, err := h.incidents.ListForStaff(c.UserContext(), principal.Actor(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(incidents)})
}
