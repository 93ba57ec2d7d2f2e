package dto

import "github.com/spec-kit/campus-desk/internal/domain"

// ChatRequest is one message from the student chat.
type ChatRequest struct {
	Message     string             `json:"message"`
	UserID      string             `json:"userId"`
	TicketID    string             `json:"ticketId"`
	RequestType domain.RequestType `json:"requestType"`
	Purpose     string             `json:"purpose"`
	SessionID   string             `json:"sessionId"`
}

// ChatResponse carries the reply. ID is null for plain chat.
type ChatResponse struct {
	ID        *string `json:"id"`
	Status    string  `json:"status"`
	Reply     string  `json:"reply"`
	SessionID string  `json:"sessionId,omitempty"`
}
