package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/campus-desk/internal/auth"
	"github.com/spec-kit/campus-desk/internal/document"
	"github.com/spec-kit/campus-desk/internal/domain"
	"github.com/spec-kit/campus-desk/internal/events"
	"github.com/spec-kit/campus-desk/internal/idgen"
	"github.com/spec-kit/campus-desk/internal/lock"
	"github.com/spec-kit/campus-desk/internal/observability"
	"github.com/spec-kit/campus-desk/internal/repository"
	"github.com/spec-kit/campus-desk/internal/routing"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

// ReplyUpdateReceived acknowledges a student's reply.
const ReplyUpdateReceived = "Update received."

const maxCreateAttempts = 3

// DocumentRenderer produces the artifact for an approved ticket.
type DocumentRenderer interface {
	Render(ctx context.Context, ticket *domain.Ticket, user *domain.User) (*document.Artifact, error)
}

// OfficeAuthorizer decides which roles may work an office's queue.
type OfficeAuthorizer interface {
	Allowed(role domain.Role, office domain.Department, act string) bool
	Offices(role domain.Role) []domain.Department
}

// LifecycleService owns ticket creation and every status change.
type LifecycleService struct {
	tickets               repository.TicketRepository
	users                 repository.UserRepository
	renderer              DocumentRenderer
	locker                lock.Locker
	policy                OfficeAuthorizer
	dispatcher            events.Dispatcher
	metrics               *observability.Metrics
	logger                *zap.Logger
	commitOnRenderFailure bool
	now                   func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Renderer   DocumentRenderer
	Locker     lock.Locker
	Policy     OfficeAuthorizer
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// CommitOnRenderFailure keeps the Approved status when the document cannot be written.
	CommitOnRenderFailure bool
	Now                   func() time.Time
}

// CreateTicketInput describes a structured request.
type CreateTicketInput struct {
	RequestType domain.RequestType
	Purpose     string
	Message     string
}

// OfficeActionInput is a department handler's decision.
type OfficeActionInput struct {
	Action      domain.OfficeAction
	Reason      string
	MissingInfo string
}

// ActionResult reports the outcome of an office action.
type ActionResult struct {
	Ticket *domain.Ticket
	PDFURL string
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyedMutex()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &LifecycleService{
		tickets:               deps.TicketRepo,
		users:                 deps.UserRepo,
		renderer:              deps.Renderer,
		locker:                deps.Locker,
		policy:                deps.Policy,
		dispatcher:            deps.Dispatcher,
		metrics:               deps.Metrics,
		logger:                deps.Logger,
		commitOnRenderFailure: deps.CommitOnRenderFailure,
		now:                   deps.Now,
	}
}

// CreateTicket routes the request and stores a Submitted ticket seeded with the
// submission and the office acknowledgment.
func (s *LifecycleService) CreateTicket(ctx context.Context, user *domain.User, input CreateTicketInput) (*domain.Ticket, routing.Route, error) {
	if user == nil {
		return nil, routing.Route{}, apperrors.NewUnauthorized("unknown user")
	}
	if input.RequestType == "" {
		return nil, routing.Route{}, apperrors.NewValidationError("requestType is required", nil)
	}
	route := routing.For(input.RequestType)

	purpose := input.Purpose
	if purpose == "" {
		purpose = input.Message
	}
	studentID := user.StudentID
	if studentID == "" {
		studentID = "N/A"
	}
	department := user.Department
	if department == "" {
		department = "General"
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id, err := idgen.Unique(ctx, route.Prefix, s.tickets.Exists)
		if err != nil {
			if errors.Is(err, idgen.ErrExhausted) {
				return nil, route, apperrors.NewConflict("ticket id space exhausted", map[string]any{"prefix": route.Prefix})
			}
			return nil, route, err
		}

		now := s.now()
		ticket := &domain.Ticket{
			ID:          id,
			UserID:      user.ID,
			StudentName: user.Name,
			StudentID:   studentID,
			Department:  department,
			Office:      route.Department,
			RequestType: input.RequestType,
			Purpose:     purpose,
			Status:      domain.TicketStatusSubmitted,
			Timestamp:   now,
			ChatHistory: []domain.ChatEntry{
				{Sender: domain.SenderUser, Text: fmt.Sprintf("Requested: %s\nPurpose: %s", input.RequestType, purpose), Timestamp: now},
				{Sender: domain.SenderSystem, Text: fmt.Sprintf("[%s] %s", id, route.Acknowledgment), Timestamp: now},
			},
		}

		err = s.tickets.Create(ctx, ticket)
		if errors.Is(err, repository.ErrDuplicateID) {
			s.logger.Debug("ticket id taken concurrently, redrawing", zap.String("ticket_id", id))
			continue
		}
		if err != nil {
			return nil, route, err
		}

		s.logger.Info("ticket created",
			zap.String("ticket_id", ticket.ID),
			zap.String("request_type", string(ticket.RequestType)),
			zap.String("office", string(ticket.Office)),
		)
		s.publishEvent(ctx, events.New(events.EventTicketCreated, ticket, userActor(user), events.TicketCreatedPayload{
			RequestType: ticket.RequestType,
			Purpose:     ticket.Purpose,
			StudentName: ticket.StudentName,
		}))
		return ticket, route, nil
	}
	return nil, route, apperrors.NewConflict("could not allocate ticket id", map[string]any{"prefix": route.Prefix})
}

// RecordReply appends the user's message and the acknowledgment. A ticket waiting for
// information moves back to In Progress; terminal tickets still log the reply.
func (s *LifecycleService) RecordReply(ctx context.Context, user *domain.User, ticketID, message string) (*domain.Ticket, error) {
	var pending outbox
	defer s.flush(ctx, &pending)

	release, err := s.locker.Lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer release()

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	newStatus := oldStatus
	if oldStatus == domain.TicketStatusWaitingForInfo {
		newStatus = domain.TicketStatusInProgress
	}

	now := s.now()
	entries := []domain.ChatEntry{
		{Sender: domain.SenderUser, Text: message, Timestamp: now},
		{Sender: domain.SenderSystem, Text: ReplyUpdateReceived, Timestamp: now},
	}
	if err := s.commit(ctx, ticket, newStatus, entries...); err != nil {
		return nil, err
	}

	actor := userActor(user)
	pending.add(events.New(events.EventTicketReplied, ticket, actor, events.TicketRepliedPayload{BodyPreview: preview(message)}))
	if newStatus != oldStatus {
		pending.add(events.New(events.EventTicketStatusChanged, ticket, actor, events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Comment:   "student replied",
		}))
	}
	return ticket, nil
}

// ApplyOfficeAction applies a department decision. actor may be nil for trusted callers;
// otherwise the actor's role must be allowed to decide for the ticket's office.
func (s *LifecycleService) ApplyOfficeAction(ctx context.Context, actor *domain.User, ticketID string, input OfficeActionInput) (*ActionResult, error) {
	if !input.Action.Valid() {
		s.metrics.RecordAction(string(input.Action), "invalid")
		return nil, apperrors.NewValidationError("unsupported action", map[string]any{"action": input.Action})
	}

	var pending outbox
	defer s.flush(ctx, &pending)

	release, err := s.locker.Lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer release()

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, auth.ActDecide); err != nil {
		s.metrics.RecordAction(string(input.Action), "forbidden")
		return nil, err
	}

	var target domain.TicketStatus
	switch input.Action {
	case domain.ActionApprove:
		target = domain.TicketStatusApproved
	case domain.ActionReject:
		target = domain.TicketStatusRejected
	case domain.ActionRequestInfo:
		target = domain.TicketStatusWaitingForInfo
	}
	if !isValidTransition(ticket.Status, target) {
		s.metrics.RecordAction(string(input.Action), "conflict")
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"ticketId": ticket.ID,
			"from":     ticket.Status,
			"to":       target,
		})
	}

	oldStatus := ticket.Status
	result := &ActionResult{Ticket: ticket}
	now := s.now()

	switch input.Action {
	case domain.ActionApprove:
		artifact, err := s.render(ctx, ticket)
		if err != nil {
			s.metrics.RecordAction(string(input.Action), "render_failed")
			if s.commitOnRenderFailure {
				if cerr := s.commit(ctx, ticket, target); cerr != nil {
					s.logger.Error("commit approval after render failure", zap.String("ticket_id", ticket.ID), zap.Error(cerr))
				} else {
					pending.add(statusChanged(ticket, actor, oldStatus, "document generation failed"))
				}
			}
			return nil, err
		}
		entry := domain.ChatEntry{
			Sender:    ticket.Office.Sender(),
			Text:      fmt.Sprintf("Your %s has been generated. Download below.", ticket.RequestType),
			PDFURL:    artifact.URL,
			Timestamp: now,
		}
		if err := s.commit(ctx, ticket, target, entry); err != nil {
			return nil, err
		}
		result.PDFURL = artifact.URL
		pending.add(statusChanged(ticket, actor, oldStatus, ""))
		pending.add(events.New(events.EventDocumentIssued, ticket, officeActor(actor, ticket), events.DocumentIssuedPayload{
			Artifact: artifact.Name,
			URL:      artifact.URL,
			Digest:   artifact.Digest,
		}))

	case domain.ActionReject:
		entry := domain.ChatEntry{Sender: domain.SenderSystem, Text: "Request REJECTED. Reason: " + input.Reason, Timestamp: now}
		if err := s.commit(ctx, ticket, target, entry); err != nil {
			return nil, err
		}
		pending.add(statusChanged(ticket, actor, oldStatus, input.Reason))

	case domain.ActionRequestInfo:
		entry := domain.ChatEntry{Sender: domain.SenderSystem, Text: "Info Required: " + input.MissingInfo, Timestamp: now}
		if err := s.commit(ctx, ticket, target, entry); err != nil {
			return nil, err
		}
		pending.add(statusChanged(ticket, actor, oldStatus, input.MissingInfo))
	}

	s.metrics.RecordAction(string(input.Action), "ok")
	s.logger.Info("office action applied",
		zap.String("ticket_id", ticket.ID),
		zap.String("action", string(input.Action)),
		zap.String("status", string(ticket.Status)),
	)
	return result, nil
}

// MarkInProgress records that an office picked the ticket up.
func (s *LifecycleService) MarkInProgress(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	var pending outbox
	defer s.flush(ctx, &pending)

	release, err := s.locker.Lock(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	defer release()

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, ticket, auth.ActDecide); err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.Status, domain.TicketStatusInProgress) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"ticketId": ticket.ID,
			"from":     ticket.Status,
			"to":       domain.TicketStatusInProgress,
		})
	}

	oldStatus := ticket.Status
	entry := domain.ChatEntry{
		Sender:    domain.SenderSystem,
		Text:      fmt.Sprintf("Ticket picked up by %s office.", ticket.Office),
		Timestamp: s.now(),
	}
	if err := s.commit(ctx, ticket, domain.TicketStatusInProgress, entry); err != nil {
		return nil, err
	}
	pending.add(statusChanged(ticket, actor, oldStatus, "picked up"))
	return ticket, nil
}

// TicketQuery filters office listings.
type TicketQuery struct {
	Office   *domain.Department
	IDPrefix string
	Statuses []domain.TicketStatus
}

// ListTickets returns tickets visible to the actor. Staff limited to one office only see
// that office; a nil actor sees everything.
func (s *LifecycleService) ListTickets(ctx context.Context, actor *domain.User, query TicketQuery) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{Office: query.Office, IDPrefix: query.IDPrefix, Statuses: query.Statuses}
	if actor != nil && s.policy != nil {
		offices := s.policy.Offices(actor.Role)
		switch {
		case len(offices) == 0:
			return nil, apperrors.NewForbidden("no office access")
		case filter.Office != nil:
			if !s.policy.Allowed(actor.Role, *filter.Office, auth.ActView) {
				return nil, apperrors.NewForbidden("office not permitted")
			}
		case len(offices) == 1:
			filter.Office = &offices[0]
		}
	}
	return s.tickets.List(ctx, filter)
}

// ListUserTickets returns every ticket owned by userID, oldest first.
func (s *LifecycleService) ListUserTickets(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, repository.TicketFilter{UserID: &userID})
}

// GetTicket loads a single ticket.
func (s *LifecycleService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.loadTicket(ctx, ticketID)
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusSubmitted:      {domain.TicketStatusInProgress, domain.TicketStatusWaitingForInfo, domain.TicketStatusApproved, domain.TicketStatusRejected},
	domain.TicketStatusInProgress:     {domain.TicketStatusWaitingForInfo, domain.TicketStatusApproved, domain.TicketStatusRejected},
	domain.TicketStatusWaitingForInfo: {domain.TicketStatusInProgress, domain.TicketStatusWaitingForInfo, domain.TicketStatusApproved, domain.TicketStatusRejected},
	domain.TicketStatusApproved:       {},
	domain.TicketStatusRejected:       {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s *LifecycleService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

// commit persists the new status and entries, then mirrors them on ticket.
func (s *LifecycleService) commit(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, entries ...domain.ChatEntry) error {
	if err := s.tickets.Append(ctx, ticket.ID, status, entries...); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
		}
		return err
	}
	ticket.Status = status
	ticket.ChatHistory = append(ticket.ChatHistory, entries...)
	return nil
}

func (s *LifecycleService) authorize(actor *domain.User, ticket *domain.Ticket, act string) error {
	if actor == nil || s.policy == nil {
		return nil
	}
	if !s.policy.Allowed(actor.Role, ticket.Office, act) {
		return apperrors.NewForbidden(fmt.Sprintf("role %s may not act on %s tickets", actor.Role, ticket.Office))
	}
	return nil
}

func (s *LifecycleService) render(ctx context.Context, ticket *domain.Ticket) (*document.Artifact, error) {
	if s.renderer == nil {
		return nil, apperrors.NewRenderFailure(errors.New("no document renderer configured"), map[string]any{"ticketId": ticket.ID})
	}
	var owner *domain.User
	if s.users != nil {
		user, err := s.users.GetByID(ctx, ticket.UserID)
		switch {
		case err == nil:
			owner = user
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	artifact, err := s.renderer.Render(ctx, ticket, owner)
	s.metrics.RecordRender(string(ticket.RequestType), err == nil)
	if err != nil {
		s.logger.Error("document render failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		if !apperrors.HasCode(err, apperrors.CodeRenderFailed) {
			err = apperrors.NewRenderFailure(err, map[string]any{"ticketId": ticket.ID})
		}
		return nil, err
	}
	return artifact, nil
}

func statusChanged(ticket *domain.Ticket, actor *domain.User, oldStatus domain.TicketStatus, comment string) events.Event {
	return events.New(events.EventTicketStatusChanged, ticket, officeActor(actor, ticket), events.TicketStatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: ticket.Status,
		Comment:   comment,
	})
}

// outbox collects events raised under a ticket lock. They are flushed once the lock is
// released so subscribers never extend the critical section.
type outbox []events.Event

func (o *outbox) add(event events.Event) {
	*o = append(*o, event)
}

func (s *LifecycleService) flush(ctx context.Context, o *outbox) {
	for _, event := range *o {
		s.publishEvent(ctx, event)
	}
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func userActor(user *domain.User) events.Actor {
	actor := events.Actor{Sender: domain.SenderUser}
	if user != nil {
		actor.UserID = user.ID
	}
	return actor
}

func officeActor(user *domain.User, ticket *domain.Ticket) events.Actor {
	actor := events.Actor{Sender: ticket.Office.Sender()}
	if user != nil {
		actor.UserID = user.ID
	}
	return actor
}

func preview(text string) string {
	const limit = 120
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
