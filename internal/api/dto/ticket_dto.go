package dto

import "github.com/spec-kit/campus-desk/internal/domain"

// OfficeActionRequest payload for POST /api/admin/action.
type OfficeActionRequest struct {
	RequestID   string              `json:"requestId"`
	Action      domain.OfficeAction `json:"action"`
	Reason      string              `json:"reason"`
	MissingInfo string              `json:"missingInfo"`
}

// OfficeActionResponse reports the ticket's new status.
type OfficeActionResponse struct {
	Success bool                `json:"success"`
	Status  domain.TicketStatus `json:"status"`
	PDFURL  string              `json:"pdfUrl,omitempty"`
}

// UpdateStatusRequest payload for POST /api/update-status.
type UpdateStatusRequest struct {
	ID     string              `json:"id"`
	Status domain.TicketStatus `json:"status"`
}
