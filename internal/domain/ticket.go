package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusSubmitted      TicketStatus = "Submitted"
	TicketStatusInProgress     TicketStatus = "In Progress"
	TicketStatusWaitingForInfo TicketStatus = "Waiting for Info"
	TicketStatusApproved       TicketStatus = "Approved"
	TicketStatusRejected       TicketStatus = "Rejected"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusSubmitted, TicketStatusInProgress, TicketStatusWaitingForInfo,
		TicketStatusApproved, TicketStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusApproved || s == TicketStatusRejected
}

// Sender attributes a chat entry to a party.
type Sender string

const (
	SenderUser     Sender = "User"
	SenderSystem   Sender = "System"
	SenderAdmin    Sender = "Admin"
	SenderAccounts Sender = "Accounts"
	SenderIT       Sender = "IT"
)

// ChatEntry is one immutable line of a ticket's audit trail.
type ChatEntry struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	PDFURL    string    `json:"pdfUrl,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticket is the aggregate for service requests.
type Ticket struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	StudentName string       `json:"studentName"`
	StudentID   string       `json:"studentId"`
	Department  string       `json:"department"`
	Office      Department   `json:"office"`
	RequestType RequestType  `json:"requestType"`
	Purpose     string       `json:"purpose"`
	Status      TicketStatus `json:"status"`
	Timestamp   time.Time    `json:"timestamp"`
	ChatHistory []ChatEntry  `json:"chatHistory"`
}

// Clone returns a copy whose history does not alias the receiver's.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.ChatHistory = append([]ChatEntry(nil), t.ChatHistory...)
	return &cp
}
