package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/campus-desk/internal/domain"
)

var (
	_ TicketRepository = (*MemoryTicketRepository)(nil)
	_ UserRepository   = (*MemoryUserRepository)(nil)
)

// MemoryTicketRepository keeps tickets in process memory. It is the default store
// when no database is configured and the store used by tests.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	order   []string
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository builds an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.ID]; exists {
		return ErrDuplicateID
	}
	r.tickets[ticket.ID] = ticket.Clone()
	r.order = append(r.order, ticket.ID)
	return nil
}

func (r *MemoryTicketRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tickets[id]
	return ok, nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket.Clone(), nil
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.Ticket{}
	for _, id := range r.order {
		ticket := r.tickets[id]
		if !matches(ticket, filter) {
			continue
		}
		result = append(result, *ticket.Clone())
	}
	return result, nil
}

func (r *MemoryTicketRepository) Append(_ context.Context, ticketID string, status domain.TicketStatus, entries ...domain.ChatEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	ticket.Status = status
	ticket.ChatHistory = append(ticket.ChatHistory, entries...)
	return nil
}

func matches(ticket *domain.Ticket, filter TicketFilter) bool {
	if filter.UserID != nil && ticket.UserID != *filter.UserID {
		return false
	}
	if filter.Office != nil && ticket.Office != *filter.Office {
		return false
	}
	if filter.IDPrefix != "" && !strings.HasPrefix(ticket.ID, filter.IDPrefix) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if ticket.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MemoryUserRepository keeps directory users in process memory.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

// NewMemoryUserRepository builds an empty directory.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[user.ID]; exists {
		return ErrDuplicateID
	}
	email := strings.ToLower(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicateEmail
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	stored.Email = email
	r.byID[user.ID] = stored
	r.byEmail[email] = user.ID
	return nil
}

func (r *MemoryUserRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	user := r.byID[id]
	return &user, nil
}
