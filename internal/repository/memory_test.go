package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/campus-desk/internal/domain"
)

func newTicket(id, userID string, office domain.Department) *domain.Ticket {
	now := time.Now().UTC()
	return &domain.Ticket{
		ID:          id,
		UserID:      userID,
		Office:      office,
		RequestType: domain.RequestTypeBonafide,
		Status:      domain.TicketStatusSubmitted,
		Timestamp:   now,
		ChatHistory: []domain.ChatEntry{
			{Sender: domain.SenderUser, Text: "hi", Timestamp: now},
			{Sender: domain.SenderSystem, Text: "ack", Timestamp: now},
		},
	}
}

func TestMemoryTicketRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	if err := repo.Create(ctx, newTicket("ADM-1000", "u1", domain.DepartmentAdmin)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, newTicket("ADM-1000", "u2", domain.DepartmentAdmin)); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}
	got, err := repo.GetByID(ctx, "ADM-1000")
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "u1" || len(got.ChatHistory) != 2 {
		t.Fatalf("unexpected ticket %+v", got)
	}
	if _, err := repo.GetByID(ctx, "ADM-9999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryTicketRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	if err := repo.Create(ctx, newTicket("FIN-1234", "u1", domain.DepartmentAccounts)); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetByID(ctx, "FIN-1234")
	got.Status = domain.TicketStatusApproved
	got.ChatHistory[0].Text = "tampered"
	got.ChatHistory = append(got.ChatHistory, domain.ChatEntry{Text: "extra"})

	again, _ := repo.GetByID(ctx, "FIN-1234")
	if again.Status != domain.TicketStatusSubmitted {
		t.Fatalf("status leaked through copy: %s", again.Status)
	}
	if len(again.ChatHistory) != 2 || again.ChatHistory[0].Text != "hi" {
		t.Fatalf("history leaked through copy: %+v", again.ChatHistory)
	}
}

func TestMemoryTicketRepository_AppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	for _, tk := range []*domain.Ticket{
		newTicket("FIN-1111", "u1", domain.DepartmentAccounts),
		newTicket("IT-2222", "u2", domain.DepartmentIT),
		newTicket("ADM-3333", "u1", domain.DepartmentAdmin),
	} {
		if err := repo.Create(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.Append(ctx, "IT-2222", domain.TicketStatusInProgress,
		domain.ChatEntry{Sender: domain.SenderUser, Text: "more"},
		domain.ChatEntry{Sender: domain.SenderSystem, Text: "Update received."},
	); err != nil {
		t.Fatal(err)
	}
	if err := repo.Append(ctx, "IT-0000", domain.TicketStatusInProgress); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	all, _ := repo.List(ctx, TicketFilter{})
	if len(all) != 3 || all[0].ID != "FIN-1111" || all[2].ID != "ADM-3333" {
		t.Fatalf("list should preserve creation order: %+v", all)
	}

	u1 := "u1"
	mine, _ := repo.List(ctx, TicketFilter{UserID: &u1})
	if len(mine) != 2 {
		t.Fatalf("want 2 tickets for u1, got %d", len(mine))
	}

	it, _ := repo.List(ctx, TicketFilter{IDPrefix: "IT"})
	if len(it) != 1 || len(it[0].ChatHistory) != 4 || it[0].Status != domain.TicketStatusInProgress {
		t.Fatalf("unexpected IT listing %+v", it)
	}

	accounts := domain.DepartmentAccounts
	fin, _ := repo.List(ctx, TicketFilter{Office: &accounts, Statuses: []domain.TicketStatus{domain.TicketStatusSubmitted}})
	if len(fin) != 1 || fin[0].ID != "FIN-1111" {
		t.Fatalf("unexpected accounts listing %+v", fin)
	}
}

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := &domain.User{ID: "USR-1000", Name: "Asha", Email: "Asha@College.edu", Role: domain.RoleStudent}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, &domain.User{ID: "USR-1000", Email: "other@college.edu"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}
	if err := repo.Create(ctx, &domain.User{ID: "USR-2000", Email: "asha@college.edu"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	got, err := repo.GetByEmail(ctx, "ASHA@college.edu")
	if err != nil || got.ID != "USR-1000" {
		t.Fatalf("lookup by email failed: %v %+v", err, got)
	}
	if ok, _ := repo.Exists(ctx, "USR-1000"); !ok {
		t.Fatalf("user should exist")
	}
	if _, err := repo.GetByID(ctx, "USR-9999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
