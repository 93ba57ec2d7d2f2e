package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/campus-desk/internal/api/dto"
	"github.com/spec-kit/campus-desk/internal/service"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

// ChatHandler exposes the student chat intake.
type ChatHandler struct {
	intake *service.IntakeService
}

// NewChatHandler constructs handler.
func NewChatHandler(intake *service.IntakeService) *ChatHandler {
	return &ChatHandler{intake: intake}
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	reply, err := h.intake.Dispatch(c.UserContext(), service.ChatInput{
		Message:     req.Message,
		UserID:      req.UserID,
		TicketID:    req.TicketID,
		RequestType: req.RequestType,
		Purpose:     req.Purpose,
		SessionID:   req.SessionID,
	})
	if err != nil {
		return err
	}

	resp := dto.ChatResponse{Status: reply.Status, Reply: reply.Reply, SessionID: reply.SessionID}
	if reply.TicketID != "" {
		id := reply.TicketID
		resp.ID = &id
	}
	return c.JSON(resp)
}
