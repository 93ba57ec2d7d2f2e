package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/campus-desk/internal/assistant"
	"github.com/spec-kit/campus-desk/internal/domain"
	"github.com/spec-kit/campus-desk/internal/repository"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

// StatusChat marks a reply that did not touch any ticket.
const StatusChat = "Chat"

// ReplyUseNewRequest points free-form chat at the structured request flow.
const ReplyUseNewRequest = "Please use the 'New Request' button to submit an official request (Bonafide, Fee Receipt, etc.)."

// Assistant answers free-form chat. Implementations never fail.
type Assistant interface {
	Send(ctx context.Context, text, sessionID string) assistant.Reply
}

// ChatInput is one message from the chat surface.
type ChatInput struct {
	Message     string
	UserID      string
	TicketID    string
	RequestType domain.RequestType
	Purpose     string
	SessionID   string
}

// ChatReply is what the chat surface shows back. TicketID is empty for plain chat.
type ChatReply struct {
	TicketID  string
	Status    string
	Reply     string
	SessionID string
}

// IntakeService dispatches chat messages to replies, new tickets or the assistant.
type IntakeService struct {
	users     repository.UserRepository
	lifecycle *LifecycleService
	assistant Assistant
	logger    *zap.Logger
}

// NewIntakeService constructs the service. A nil assistant keeps the static guidance reply.
func NewIntakeService(users repository.UserRepository, lifecycle *LifecycleService, assistant Assistant, logger *zap.Logger) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{users: users, lifecycle: lifecycle, assistant: assistant, logger: logger}
}

// Dispatch handles a chat message. An existing ticket id wins over a request type; with
// neither the message is treated as conversation.
func (s *IntakeService) Dispatch(ctx context.Context, input ChatInput) (*ChatReply, error) {
	user, err := s.resolveUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	if input.TicketID != "" {
		ticket, err := s.lifecycle.RecordReply(ctx, user, input.TicketID, input.Message)
		if err != nil {
			return nil, err
		}
		return &ChatReply{TicketID: ticket.ID, Status: string(ticket.Status), Reply: ReplyUpdateReceived}, nil
	}

	if input.RequestType != "" {
		ticket, route, err := s.lifecycle.CreateTicket(ctx, user, CreateTicketInput{
			RequestType: input.RequestType,
			Purpose:     input.Purpose,
			Message:     input.Message,
		})
		if err != nil {
			return nil, err
		}
		return &ChatReply{TicketID: ticket.ID, Status: string(ticket.Status), Reply: route.Acknowledgment}, nil
	}

	if s.assistant == nil {
		return &ChatReply{Status: StatusChat, Reply: ReplyUseNewRequest}, nil
	}
	answer := s.assistant.Send(ctx, input.Message, input.SessionID)
	return &ChatReply{Status: StatusChat, Reply: answer.Text, SessionID: answer.SessionID}, nil
}

func (s *IntakeService) resolveUser(ctx context.Context, userID string) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewUnauthorized("unknown user")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("chat from unknown user", zap.String("user_id", userID))
			return nil, apperrors.NewUnauthorized("unknown user")
		}
		return nil, err
	}
	return user, nil
}
