package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/campus-desk/internal/config"
	"github.com/spec-kit/campus-desk/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
	client *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// RegisterHandlers subscribes to events on d.
func (n *NotificationService) RegisterHandlers(d events.Dispatcher) {
	if d == nil {
		return
	}
	d.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	d.Subscribe(events.EventTicketReplied, n.handleTicketReplied)
	d.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	d.Subscribe(events.EventDocumentIssued, n.handleDocumentIssued)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.String("office", string(event.Office)))
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) handleTicketReplied(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketReplied", zap.String("ticket_id", event.TicketID))
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(event)
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) handleDocumentIssued(ctx context.Context, event events.Event) error {
	n.logger.Info("DocumentIssued", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(event)
	return nil
}

// sendEmailNotificationStub only logs the mail that would be sent; no SMTP relay is wired.
func (n *NotificationService) sendEmailNotificationStub(event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("email notification",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}
