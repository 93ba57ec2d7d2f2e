package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/campus-desk/internal/domain"
)

// TicketFilter narrows ticket listings. Zero values match everything.
type TicketFilter struct {
	UserID   *string
	Office   *domain.Department
	IDPrefix string
	Statuses []domain.TicketStatus
}

// TicketRepository encapsulates ticket persistence. Implementations return tickets
// in creation order with their full chat history.
type TicketRepository interface {
	// Create stores a new ticket with its seed history, failing with ErrDuplicateID
	// when the id is taken.
	Create(ctx context.Context, ticket *domain.Ticket) error
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// Append sets the ticket status and appends entries in one atomic step.
	Append(ctx context.Context, ticketID string, status domain.TicketStatus, entries ...domain.ChatEntry) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, user_id, student_name, student_id, department, office, request_type, purpose, status, created_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (id) DO NOTHING`
	cmd, err := tx.Exec(ctx, query,
		ticket.ID,
		ticket.UserID,
		ticket.StudentName,
		ticket.StudentID,
		ticket.Department,
		ticket.Office,
		ticket.RequestType,
		ticket.Purpose,
		ticket.Status,
		ticket.Timestamp,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateID
	}
	if err := insertEntries(ctx, tx, ticket.ID, 0, ticket.ChatHistory); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	histories, err := r.loadHistories(ctx, []string{ticket.ID})
	if err != nil {
		return nil, err
	}
	ticket.ChatHistory = histories[ticket.ID]
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.Office != nil {
		args = append(args, *filter.Office)
		clauses = append(clauses, fmt.Sprintf("office=$%d", len(args)))
	}
	if filter.IDPrefix != "" {
		args = append(args, filter.IDPrefix+"%")
		clauses = append(clauses, fmt.Sprintf("id LIKE $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at ASC, id ASC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return tickets, nil
	}

	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	histories, err := r.loadHistories(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		tickets[i].ChatHistory = histories[tickets[i].ID]
	}
	return tickets, nil
}

func (r *ticketRepository) Append(ctx context.Context, ticketID string, status domain.TicketStatus, entries ...domain.ChatEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current domain.TicketStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id=$1 FOR UPDATE`, ticketID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM ticket_chat_entries WHERE ticket_id=$1`, ticketID,
	).Scan(&next); err != nil {
		return err
	}
	if err := insertEntries(ctx, tx, ticketID, next, entries); err != nil {
		return err
	}
	if status != current {
		if _, err := tx.Exec(ctx, `UPDATE tickets SET status=$1 WHERE id=$2`, status, ticketID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) loadHistories(ctx context.Context, ids []string) (map[string][]domain.ChatEntry, error) {
	const query = `
        SELECT ticket_id, sender, body, pdf_url, created_at
        FROM ticket_chat_entries WHERE ticket_id = ANY($1) ORDER BY ticket_id, seq ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.ChatEntry, len(ids))
	for rows.Next() {
		var (
			ticketID string
			entry    domain.ChatEntry
		)
		if err := rows.Scan(&ticketID, &entry.Sender, &entry.Text, &entry.PDFURL, &entry.Timestamp); err != nil {
			return nil, err
		}
		result[ticketID] = append(result[ticketID], entry)
	}
	return result, rows.Err()
}

func insertEntries(ctx context.Context, tx pgx.Tx, ticketID string, firstSeq int, entries []domain.ChatEntry) error {
	const query = `
        INSERT INTO ticket_chat_entries (ticket_id, seq, sender, body, pdf_url, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	for i, entry := range entries {
		if _, err := tx.Exec(ctx, query,
			ticketID,
			firstSeq+i,
			entry.Sender,
			entry.Text,
			entry.PDFURL,
			entry.Timestamp,
		); err != nil {
			return err
		}
	}
	return nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.StudentName,
		&ticket.StudentID,
		&ticket.Department,
		&ticket.Office,
		&ticket.RequestType,
		&ticket.Purpose,
		&ticket.Status,
		&ticket.Timestamp,
	)
}
