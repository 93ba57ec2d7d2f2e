package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/campus-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketReplied       EventType = "ticket_replied"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventDocumentIssued      EventType = "document_issued"
)

// AllTypes lists every event type, in publication order of a typical ticket.
var AllTypes = []EventType{EventTicketCreated, EventTicketReplied, EventTicketStatusChanged, EventDocumentIssued}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Sender domain.Sender `json:"sender"`
	UserID string        `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	TicketID  string            `json:"ticket_id"`
	Office    domain.Department `json:"office"`
	Actor     Actor             `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   interface{}       `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, ticket *domain.Ticket, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		Office:    ticket.Office,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequestType domain.RequestType `json:"request_type"`
	Purpose     string             `json:"purpose"`
	StudentName string             `json:"student_name"`
}

// TicketRepliedPayload payload.
type TicketRepliedPayload struct {
	BodyPreview string `json:"body_preview"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// DocumentIssuedPayload payload.
type DocumentIssuedPayload struct {
	Artifact string `json:"artifact"`
	URL      string `json:"url"`
	Digest   string `json:"blake3"`
}
