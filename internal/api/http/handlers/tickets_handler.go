package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-desk/internal/api/dto"
	"github.com/spec-kit/campus-desk/internal/auth"
	"github.com/spec-kit/campus-desk/internal/domain"
	"github.com/spec-kit/campus-desk/internal/service"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

// TicketsHandler serves office dashboards and student polling.
type TicketsHandler struct {
	lifecycle *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle}
}

// OfficeAction handles POST /api/admin/action.
func (h *TicketsHandler) OfficeAction(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.OfficeActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RequestID == "" {
		return apperrors.NewValidationError("requestId required", nil)
	}

	result, err := h.lifecycle.ApplyOfficeAction(c.UserContext(), principal.User, req.RequestID, service.OfficeActionInput{
		Action:      req.Action,
		Reason:      req.Reason,
		MissingInfo: req.MissingInfo,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OfficeActionResponse{Success: true, Status: result.Ticket.Status, PDFURL: result.PDFURL})
}

// UpdateStatus handles POST /api/update-status. Only the pick-up edge is exposed.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ID == "" {
		return apperrors.NewValidationError("id required", nil)
	}
	if req.Status != domain.TicketStatusInProgress {
		return apperrors.NewValidationError("only In Progress may be set directly", map[string]any{"status": req.Status})
	}

	ticket, err := h.lifecycle.MarkInProgress(c.UserContext(), principal.User, req.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.OfficeActionResponse{Success: true, Status: ticket.Status})
}

// ListTickets handles GET /api/requests?office=&prefix=&status=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var query service.TicketQuery
	if office := c.Query("office"); office != "" {
		dept := domain.Department(office)
		query.Office = &dept
	}
	query.IDPrefix = strings.ToUpper(c.Query("prefix"))
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return apperrors.NewValidationError("unknown status", map[string]any{"status": status})
			}
			query.Statuses = append(query.Statuses, status)
		}
	}

	tickets, err := h.lifecycle.ListTickets(c.UserContext(), principal.User, query)
	if err != nil {
		return err
	}
	return c.JSON(tickets)
}

// ListUserTickets handles GET /api/requests/:userId.
func (h *TicketsHandler) ListUserTickets(c *fiber.Ctx) error {
	tickets, err := h.lifecycle.ListUserTickets(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(tickets)
}
