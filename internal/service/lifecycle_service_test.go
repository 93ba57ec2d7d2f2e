package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"github.com/spec-kit/campus-desk/internal/auth"
	"github.com/spec-kit/campus-desk/internal/document"
	"github.com/spec-kit/campus-desk/internal/domain"
	"github.com/spec-kit/campus-desk/internal/events"
	"github.com/spec-kit/campus-desk/internal/observability"
	"github.com/spec-kit/campus-desk/internal/repository"
	apperrors "github.com/spec-kit/campus-desk/pkg/util"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var (
	student  = &domain.User{ID: "1", Name: "Rahul Sharma", StudentID: "21CS104", Department: "Computer Science", Email: "student@college.edu", Role: domain.RoleStudent}
	admin    = &domain.User{ID: "admin", Name: "Admin Office", Email: "admin@college.edu", Role: domain.RoleAdmin}
	itStaff  = &domain.User{ID: "it", Name: "IT Helpdesk", Email: "it@college.edu", Role: domain.RoleIT}
	accounts = &domain.User{ID: "accounts", Name: "Accounts Office", Email: "accounts@college.edu", Role: domain.RoleAccounts}
)

type failingRenderer struct{}

func (failingRenderer) Render(_ context.Context, ticket *domain.Ticket, _ *domain.User) (*document.Artifact, error) {
	return nil, apperrors.NewRenderFailure(errors.New("disk full"), map[string]any{"ticketId": ticket.ID})
}

type harness struct {
	svc        *LifecycleService
	dispatcher events.Dispatcher
	tickets    *repository.MemoryTicketRepository
	renderer   *document.Renderer
	metrics    *observability.Metrics
	mu         sync.Mutex
	events     []events.Event
}

func (h *harness) record(_ context.Context, e events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *harness) eventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.EventType, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

type harnessOption func(*LifecycleDependencies)

func withRenderer(r DocumentRenderer) harnessOption {
	return func(d *LifecycleDependencies) { d.Renderer = r }
}

func commitOnRenderFailure() harnessOption {
	return func(d *LifecycleDependencies) { d.CommitOnRenderFailure = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ctx := context.Background()

	users := repository.NewMemoryUserRepository()
	for _, u := range []*domain.User{student, admin, itStaff, accounts} {
		cp := *u
		if err := users.Create(ctx, &cp); err != nil {
			t.Fatal(err)
		}
	}

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })
	renderer := document.NewRenderer(bucket, document.Options{
		Institution: "Smart Campus Institute",
		Signatory:   "Registrar",
		Now:         func() time.Time { return testNow },
	}, nil)

	policy, err := auth.NewOfficePolicy()
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		tickets:  repository.NewMemoryTicketRepository(),
		renderer: renderer,
		metrics:  observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, et := range events.AllTypes {
		dispatcher.Subscribe(et, h.record)
	}
	h.dispatcher = dispatcher

	deps := LifecycleDependencies{
		TicketRepo: h.tickets,
		UserRepo:   users,
		Renderer:   renderer,
		Policy:     policy,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Now:        func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc = NewLifecycleService(deps)
	return h
}

func (h *harness) create(t *testing.T, requestType domain.RequestType, purpose string) *domain.Ticket {
	t.Helper()
	ticket, _, err := h.svc.CreateTicket(context.Background(), student, CreateTicketInput{RequestType: requestType, Purpose: purpose, Message: "please"})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func (h *harness) stored(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return ticket
}

func TestCreateTicket_FeeReceipt(t *testing.T) {
	h := newHarness(t)
	ticket, route, err := h.svc.CreateTicket(context.Background(), student, CreateTicketInput{
		RequestType: domain.RequestTypeFeeReceipt,
		Purpose:     "Semester 5",
		Message:     "need receipt",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !regexp.MustCompile(`^FIN-\d{4}$`).MatchString(ticket.ID) {
		t.Fatalf("unexpected id %q", ticket.ID)
	}
	if route.Acknowledgment != "Fee receipt request forwarded to Accounts Office." {
		t.Fatalf("unexpected ack %q", route.Acknowledgment)
	}
	if ticket.Status != domain.TicketStatusSubmitted || ticket.Office != domain.DepartmentAccounts {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
	if ticket.StudentName != "Rahul Sharma" || ticket.StudentID != "21CS104" || ticket.Department != "Computer Science" {
		t.Fatalf("user snapshot not copied: %+v", ticket)
	}

	stored := h.stored(t, ticket.ID)
	if len(stored.ChatHistory) != 2 {
		t.Fatalf("want 2 seed entries, got %d", len(stored.ChatHistory))
	}
	first, second := stored.ChatHistory[0], stored.ChatHistory[1]
	if first.Sender != domain.SenderUser || first.Text != "Requested: FEE_RECEIPT\nPurpose: Semester 5" {
		t.Fatalf("unexpected submission entry %+v", first)
	}
	if second.Sender != domain.SenderSystem || second.Text != "["+ticket.ID+"] Fee receipt request forwarded to Accounts Office." {
		t.Fatalf("unexpected ack entry %+v", second)
	}
	if types := h.eventTypes(); len(types) != 1 || types[0] != events.EventTicketCreated {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestCreateTicket_DefaultsAndFallbackRoute(t *testing.T) {
	h := newHarness(t)
	bare := &domain.User{ID: "2", Name: "Guest"}
	ticket, route, err := h.svc.CreateTicket(context.Background(), bare, CreateTicketInput{RequestType: "TRANSCRIPT", Message: "need my transcript"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ticket.ID, "GEN-") || ticket.Office != domain.DepartmentAdmin || route.Acknowledgment != "Request received." {
		t.Fatalf("unexpected fallback routing %+v / %+v", ticket, route)
	}
	if ticket.StudentID != "N/A" || ticket.Department != "General" || ticket.Purpose != "need my transcript" {
		t.Fatalf("defaults not applied: %+v", ticket)
	}

	if _, _, err := h.svc.CreateTicket(context.Background(), bare, CreateTicketInput{}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("missing request type should fail validation, got %v", err)
	}
}

func TestRecordReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeBonafide, "for passport")

	if _, err := h.svc.ApplyOfficeAction(ctx, admin, ticket.ID, OfficeActionInput{Action: domain.ActionRequestInfo, MissingInfo: "Upload ID card"}); err != nil {
		t.Fatal(err)
	}

	updated, err := h.svc.RecordReply(ctx, student, ticket.ID, "Here is my ID")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.TicketStatusInProgress {
		t.Fatalf("want In Progress after reply, got %s", updated.Status)
	}

	stored := h.stored(t, ticket.ID)
	n := len(stored.ChatHistory)
	if n != 5 {
		t.Fatalf("want 5 entries, got %d", n)
	}
	if stored.ChatHistory[2].Text != "Info Required: Upload ID card" {
		t.Fatalf("unexpected info entry %+v", stored.ChatHistory[2])
	}
	if stored.ChatHistory[n-2].Sender != domain.SenderUser || stored.ChatHistory[n-2].Text != "Here is my ID" {
		t.Fatalf("reply not recorded verbatim: %+v", stored.ChatHistory[n-2])
	}
	if stored.ChatHistory[n-1].Sender != domain.SenderSystem || stored.ChatHistory[n-1].Text != ReplyUpdateReceived {
		t.Fatalf("ack not recorded: %+v", stored.ChatHistory[n-1])
	}

	again, err := h.svc.RecordReply(ctx, student, ticket.ID, "one more thing")
	if err != nil || again.Status != domain.TicketStatusInProgress {
		t.Fatalf("second reply should keep status: %v %+v", err, again)
	}
}

func TestRecordReply_UnknownTicket(t *testing.T) {
	h := newHarness(t)
	h.create(t, domain.RequestTypeWifi, "router down")
	before, _ := h.tickets.List(context.Background(), repository.TicketFilter{})

	if _, err := h.svc.RecordReply(context.Background(), student, "ADM-0000", "hello"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	after, _ := h.tickets.List(context.Background(), repository.TicketFilter{})
	if len(after) != len(before) || len(after[0].ChatHistory) != len(before[0].ChatHistory) {
		t.Fatalf("unknown ticket reply must not touch the store")
	}
}

func TestRecordReply_TerminalTicketStillLogged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeLab, "lab access")
	if _, err := h.svc.ApplyOfficeAction(ctx, itStaff, ticket.ID, OfficeActionInput{Action: domain.ActionReject, Reason: "duplicate"}); err != nil {
		t.Fatal(err)
	}
	updated, err := h.svc.RecordReply(ctx, student, ticket.ID, "why?")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.TicketStatusRejected || len(h.stored(t, ticket.ID).ChatHistory) != 5 {
		t.Fatalf("reply on terminal ticket should be logged without status change: %+v", updated)
	}
}

func TestApprove_FeeReceipt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeFeeReceipt, "")

	result, err := h.svc.ApplyOfficeAction(ctx, accounts, ticket.ID, OfficeActionInput{Action: domain.ActionApprove})
	if err != nil {
		t.Fatal(err)
	}
	wantURL := "/public/certificates/FEE_RECEIPT_" + ticket.ID + ".pdf"
	if result.PDFURL != wantURL || result.Ticket.Status != domain.TicketStatusApproved {
		t.Fatalf("unexpected result %+v", result)
	}

	stored := h.stored(t, ticket.ID)
	last := stored.ChatHistory[len(stored.ChatHistory)-1]
	if last.Sender != domain.SenderAccounts || last.Text != "Your FEE_RECEIPT has been generated. Download below." || last.PDFURL != wantURL {
		t.Fatalf("unexpected approval entry %+v", last)
	}
	withPDF := 0
	for _, e := range stored.ChatHistory {
		if e.PDFURL != "" {
			withPDF++
		}
	}
	if withPDF != 1 {
		t.Fatalf("want exactly one pdf entry, got %d", withPDF)
	}

	reader, err := h.renderer.Open(ctx, "FEE_RECEIPT_"+ticket.ID+".pdf")
	if err != nil {
		t.Fatalf("artifact not stored: %v", err)
	}
	_ = reader.Close()

	if _, err := h.svc.ApplyOfficeAction(ctx, accounts, ticket.ID, OfficeActionInput{Action: domain.ActionApprove}); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("second approve should conflict, got %v", err)
	}
	if len(h.stored(t, ticket.ID).ChatHistory) != len(stored.ChatHistory) {
		t.Fatalf("conflicting approve must not append")
	}

	types := h.eventTypes()
	if types[len(types)-1] != events.EventDocumentIssued {
		t.Fatalf("document_issued not published: %v", types)
	}
	if snap := h.metrics.Snapshot(); snap["renders"]["FEE_RECEIPT|ok"] != 1 {
		t.Fatalf("render not counted: %v", snap["renders"])
	}
}

func TestApprove_SenderFollowsOffice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cases := map[domain.RequestType]domain.Sender{
		domain.RequestTypeBonafide: domain.SenderAdmin,
		domain.RequestTypeIDCard:   domain.SenderIT,
	}
	for requestType, want := range cases {
		ticket := h.create(t, requestType, "I need a bonafide certificate for passport")
		if _, err := h.svc.ApplyOfficeAction(ctx, admin, ticket.ID, OfficeActionInput{Action: domain.ActionApprove}); err != nil {
			t.Fatal(err)
		}
		history := h.stored(t, ticket.ID).ChatHistory
		if got := history[len(history)-1].Sender; got != want {
			t.Errorf("%s: sender %s, want %s", requestType, got, want)
		}
	}
}

func TestApprove_RenderFailureKeepsStatus(t *testing.T) {
	h := newHarness(t, withRenderer(failingRenderer{}))
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeBonafide, "visa")

	_, err := h.svc.ApplyOfficeAction(ctx, admin, ticket.ID, OfficeActionInput{Action: domain.ActionApprove})
	if !apperrors.HasCode(err, apperrors.CodeRenderFailed) {
		t.Fatalf("want render failure, got %v", err)
	}
	stored := h.stored(t, ticket.ID)
	if stored.Status != domain.TicketStatusSubmitted || len(stored.ChatHistory) != 2 {
		t.Fatalf("failed render must not commit: %+v", stored)
	}

	if _, err := h.svc.ApplyOfficeAction(ctx, admin, ticket.ID, OfficeActionInput{Action: domain.ActionReject, Reason: "retry later"}); err != nil {
		t.Fatalf("ticket should remain actionable: %v", err)
	}
}

func TestApprove_RenderFailureLegacyCommit(t *testing.T) {
	h := newHarness(t, withRenderer(failingRenderer{}), commitOnRenderFailure())
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeBonafide, "visa")

	_, err := h.svc.ApplyOfficeAction(ctx, admin, ticket.ID, OfficeActionInput{Action: domain.ActionApprove})
	if !apperrors.HasCode(err, apperrors.CodeRenderFailed) {
		t.Fatalf("want render failure, got %v", err)
	}
	stored := h.stored(t, ticket.ID)
	if stored.Status != domain.TicketStatusApproved {
		t.Fatalf("legacy mode should commit Approved, got %s", stored.Status)
	}
	if len(stored.ChatHistory) != 2 {
		t.Fatalf("legacy mode must not append an entry, got %d", len(stored.ChatHistory))
	}
}

func TestRejectAndRequestInfo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ticket := h.create(t, domain.RequestTypeWifi, "cannot connect")
	res, err := h.svc.ApplyOfficeAction(ctx, itStaff, ticket.ID, OfficeActionInput{Action: domain.ActionRequestInfo, MissingInfo: "MAC address"})
	if err != nil || res.Ticket.Status != domain.TicketStatusWaitingForInfo {
		t.Fatalf("request info: %v %+v", err, res)
	}
	res, err = h.svc.ApplyOfficeAction(ctx, itStaff, ticket.ID, OfficeActionInput{Action: domain.ActionRequestInfo, MissingInfo: "room number"})
	if err != nil || res.Ticket.Status != domain.TicketStatusWaitingForInfo {
		t.Fatalf("repeat request info: %v %+v", err, res)
	}
	res, err = h.svc.ApplyOfficeAction(ctx, itStaff, ticket.ID, OfficeActionInput{Action: domain.ActionReject})
	if err != nil || res.Ticket.Status != domain.TicketStatusRejected {
		t.Fatalf("reject: %v %+v", err, res)
	}

	history := h.stored(t, ticket.ID).ChatHistory
	want := []string{"Info Required: MAC address", "Info Required: room number", "Request REJECTED. Reason: "}
	for i, text := range want {
		entry := history[2+i]
		if entry.Sender != domain.SenderSystem || entry.Text != text {
			t.Fatalf("entry %d = %+v, want System %q", 2+i, entry, text)
		}
	}

	if _, err := h.svc.ApplyOfficeAction(ctx, itStaff, ticket.ID, OfficeActionInput{Action: domain.ActionRequestInfo, MissingInfo: "x"}); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("acting on rejected ticket should conflict, got %v", err)
	}
}

func TestApplyOfficeAction_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeFeeReceipt, "")

	if _, err := h.svc.ApplyOfficeAction(ctx, accounts, ticket.ID, OfficeActionInput{Action: "Escalate"}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("unknown action should fail validation, got %v", err)
	}
	if _, err := h.svc.ApplyOfficeAction(ctx, itStaff, ticket.ID, OfficeActionInput{Action: domain.ActionApprove}); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("IT must not decide Accounts tickets, got %v", err)
	}
	if _, err := h.svc.ApplyOfficeAction(ctx, accounts, "FIN-0000", OfficeActionInput{Action: domain.ActionApprove}); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown ticket should be not found, got %v", err)
	}

	stored := h.stored(t, ticket.ID)
	if stored.Status != domain.TicketStatusSubmitted || len(stored.ChatHistory) != 2 {
		t.Fatalf("rejected actions must not mutate: %+v", stored)
	}
}

func TestMarkInProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeIDCard, "lost card")

	updated, err := h.svc.MarkInProgress(ctx, itStaff, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	last := updated.ChatHistory[len(updated.ChatHistory)-1]
	if updated.Status != domain.TicketStatusInProgress || last.Text != "Ticket picked up by IT office." {
		t.Fatalf("unexpected ticket %+v", updated)
	}
	if _, err := h.svc.MarkInProgress(ctx, itStaff, ticket.ID); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("already in progress should conflict, got %v", err)
	}
	if _, err := h.svc.MarkInProgress(ctx, accounts, ticket.ID); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("accounts must not pick up IT tickets, got %v", err)
	}
}

func TestListTickets_ScopedByOffice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, domain.RequestTypeFeeReceipt, "")
	h.create(t, domain.RequestTypeWifi, "")
	h.create(t, domain.RequestTypeBonafide, "")

	all, err := h.svc.ListTickets(ctx, admin, TicketQuery{})
	if err != nil || len(all) != 3 {
		t.Fatalf("admin should see all: %v %d", err, len(all))
	}
	mine, err := h.svc.ListTickets(ctx, itStaff, TicketQuery{})
	if err != nil || len(mine) != 1 || mine[0].Office != domain.DepartmentIT {
		t.Fatalf("IT should see only IT tickets: %v %+v", err, mine)
	}
	adminOffice := domain.DepartmentAdmin
	if _, err := h.svc.ListTickets(ctx, accounts, TicketQuery{Office: &adminOffice}); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("accounts listing admin office should be forbidden, got %v", err)
	}
	if _, err := h.svc.ListTickets(ctx, student, TicketQuery{}); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("students have no office listing, got %v", err)
	}

	owned, err := h.svc.ListUserTickets(ctx, student.ID)
	if err != nil || len(owned) != 3 || len(owned[0].ChatHistory) != 2 {
		t.Fatalf("user listing: %v %+v", err, owned)
	}
}

func TestRecordReply_ConcurrentRepliesStayPaired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeBonafide, "")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.RecordReply(ctx, student, ticket.ID, "ping"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	history := h.stored(t, ticket.ID).ChatHistory
	if len(history) != 2+2*n {
		t.Fatalf("want %d entries, got %d", 2+2*n, len(history))
	}
	for i := 2; i < len(history); i += 2 {
		if history[i].Sender != domain.SenderUser || history[i+1].Text != ReplyUpdateReceived {
			t.Fatalf("entries %d/%d interleaved: %+v %+v", i, i+1, history[i], history[i+1])
		}
	}
}

func TestApprove_ConcurrentApprovesRenderOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeFeeReceipt, "")

	const n = 8
	var (
		wg        sync.WaitGroup
		okCount   atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ApplyOfficeAction(ctx, accounts, ticket.ID, OfficeActionInput{Action: domain.ActionApprove})
			switch {
			case err == nil:
				okCount.Add(1)
			case apperrors.HasCode(err, apperrors.CodeConflict):
				conflicts.Add(1)
			default:
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if okCount.Load() != 1 || conflicts.Load() != n-1 {
		t.Fatalf("want 1 approval and %d conflicts, got %d/%d", n-1, okCount.Load(), conflicts.Load())
	}
	withPDF := 0
	for _, e := range h.stored(t, ticket.ID).ChatHistory {
		if e.PDFURL != "" {
			withPDF++
		}
	}
	if withPDF != 1 {
		t.Fatalf("want exactly one pdf entry, got %d", withPDF)
	}
	if snap := h.metrics.Snapshot(); snap["renders"]["FEE_RECEIPT|ok"] != 1 {
		t.Fatalf("want a single render, got %v", snap["renders"])
	}
}

func TestRecordReply_SubscribersRunOutsideTicketLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.create(t, domain.RequestTypeWifi, "router down")

	entered := make(chan struct{})
	unblock := make(chan struct{})
	release := sync.OnceFunc(func() { close(unblock) })
	defer release()

	var first sync.Once
	h.dispatcher.Subscribe(events.EventTicketReplied, func(context.Context, events.Event) error {
		held := false
		first.Do(func() { held = true })
		if held {
			close(entered)
			<-unblock
		}
		return nil
	})

	firstDone := make(chan error, 1)
	go func() {
		_, err := h.svc.RecordReply(ctx, student, ticket.ID, "first")
		firstDone <- err
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first reply never reached its subscriber")
	}

	secondDone := make(chan error, 1)
	go func() {
		_, err := h.svc.RecordReply(ctx, student, ticket.ID, "second")
		secondDone <- err
	}()
	select {
	case err := <-secondDone:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second reply waited on the first reply's subscriber")
	}

	release()
	if err := <-firstDone; err != nil {
		t.Fatal(err)
	}
	if got := len(h.stored(t, ticket.ID).ChatHistory); got != 6 {
		t.Fatalf("want 6 entries, got %d", got)
	}
}
