package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	"github.com/spec-kit/incident-service/internal/worker"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// AdminHandler manages directory data (zones, categories, authority units)
// and admin-only incident operations.
type AdminHandler struct {
	zones      repository.ZoneRepository
	categories repository.CategoryRepository
	units      repository.AuthorityUnitRepository
	incidents  *service.IncidentService
	sweep      *worker.SweepWorker
}

// NewAdminHandler constructs handler.
func NewAdminHandler(zones repository.ZoneRepository, categories repository.CategoryRepository, units repository.AuthorityUnitRepository, incidents *service.IncidentService, sweep *worker.SweepWorker) *AdminHandler {
	return &AdminHandler{zones: zones, categories: categories, units: units, incidents: incidents, sweep: sweep}
}

// CreateZone POST /admin/zones.
func (h *AdminHandler) CreateZone(c *fiber.Ctx) error {
	var req dto.CreateZoneRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	zone := &domain.Zone{Name: strings.TrimSpace(req.Name), CenterLat: req.CenterLat, CenterLon: req.CenterLon}
	if err := h.zones.Create(c.UserContext(), zone); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": zoneResponse(zone)})
}

// ListZones GET /zones.
func (h *AdminHandler) ListZones(c *fiber.Ctx) error {
	zones, err := h.zones.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.ZoneResponse, 0, len(zones))
	for i := range zones {
		items = append(items, zoneResponse(&zones[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateCategory POST /admin/categories.
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	var req dto.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	category := &domain.Category{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := h.categories.Create(c.UserContext(), category); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": categoryResponse(category)})
}

// ListCategories GET /categories.
func (h *AdminHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		items = append(items, categoryResponse(&categories[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateUnit POST /admin/units.
func (h *AdminHandler) CreateUnit(c *fiber.Ctx) error {
	var req dto.CreateUnitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	unit := &domain.AuthorityUnit{
		Name:      strings.TrimSpace(req.Name),
		ProfileID: req.ProfileID,
		ZoneID:    req.ZoneID,
		Active:    true,
	}
	if req.Active != nil {
		unit.Active = *req.Active
	}
	if err := h.units.Create(c.UserContext(), unit); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": unitResponse(unit)})
}

// UpdateUnit PATCH /admin/units/:id.
func (h *AdminHandler) UpdateUnit(c *fiber.Ctx) error {
	var req dto.UpdateUnitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	unit, err := h.units.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("authority unit", map[string]any{"unit_id": c.Params("id")})
		}
		return apperrors.MapError(err)
	}
	if req.Name != nil {
		unit.Name = strings.TrimSpace(*req.Name)
	}
	if req.ProfileID != nil {
		unit.ProfileID = req.ProfileID
	}
	if req.ZoneID != nil {
		unit.ZoneID = req.ZoneID
	}
	if req.Active != nil {
		unit.Active = *req.Active
	}
	if err := h.units.Update(c.UserContext(), unit); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": unitResponse(unit)})
}

// ListUnits GET /admin/units.
func (h *AdminHandler) ListUnits(c *fiber.Ctx) error {
	var zoneID *string
	if zone := c.Query("zone_id"); zone != "" {
		zoneID = &zone
	}
	units, err := h.units.ListActive(c.UserContext(), zoneID)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.UnitResponse, 0, len(units))
	for i := range units {
		items = append(items, unitResponse(&units[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ArchiveIncident POST /admin/incidents/:id/archive.
func (h *AdminHandler) ArchiveIncident(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.incidents.Archive(c.UserContext(), principal.Actor(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkDuplicate POST /admin/incidents/:id/duplicate.
func (h *AdminHandler) MarkDuplicate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.MarkDuplicateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.DuplicateOf == "" {
		return apperrors.NewValidationError("duplicate_of required", nil)
	}
	if err := h.incidents.MarkDuplicate(c.UserContext(), principal.Actor(), c.Params("id"), req.DuplicateOf); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RunSweep POST /admin/sweep/run triggers an immediate SLA sweep.
func (h *AdminHandler) RunSweep(c *fiber.Ctx) error {
	result, err := h.sweep.RunNow(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SweepResultResponse{
		Escalated:  result.Escalated,
		Reassigned: result.Reassigned,
		Skipped:    result.Skipped,
	}})
}

func zoneResponse(zone *domain.Zone) dto.ZoneResponse {
	return dto.ZoneResponse{ID: zone.ID, Name: zone.Name, CenterLat: zone.CenterLat, CenterLon: zone.CenterLon}
}

func categoryResponse(category *domain.Category) dto.CategoryResponse {
	return dto.CategoryResponse{ID: category.ID, Name: category.Name, Description: category.Description}
}
