package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
)

const webhookTimeout = 5 * time.Second

// NotificationService reacts to domain events: it logs the customer acknowledgement to
// the outbox and mirrors lifecycle events to an optional webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	tickets    repository.TicketRepository
	outbox     *OutboxService
	webhook    *resty.Client
	logger     *zap.Logger
	cfg        config.NotificationConfig
	inflight   sync.WaitGroup
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, tickets repository.TicketRepository, outbox *OutboxService, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	n := &NotificationService{
		dispatcher: dispatcher,
		tickets:    tickets,
		outbox:     outbox,
		logger:     logger,
		cfg:        cfg,
	}
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		n.webhook = resty.New().
			SetTimeout(webhookTimeout).
			SetHeader("Content-Type", "application/json")
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketClassified, n.forwardAsync)
	n.dispatcher.Subscribe(events.EventClassificationFailed, n.forwardAsync)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.forwardAsync)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.forwardAsync)
}

// Wait blocks until every in-flight webhook delivery has finished.
func (n *NotificationService) Wait() {
	n.inflight.Wait()
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID))
	if n.outbox != nil && n.tickets != nil {
		ticket, err := n.tickets.Get(ctx, event.TicketID, access.System())
		if err != nil {
			return err
		}
		if _, err := n.outbox.RecordAcknowledgement(ctx, ticket); err != nil {
			return err
		}
	}
	return n.forwardAsync(ctx, event)
}

// forwardAsync posts the event to the webhook off the publisher's path. The delivery gets
// its own deadline so it outlives the request that raised the event.
func (n *NotificationService) forwardAsync(_ context.Context, event events.Event) error {
	if n.webhook == nil {
		return nil
	}
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		_ = n.forwardWebhook(ctx, event)
	}()
	return nil
}

func (n *NotificationService) forwardWebhook(ctx context.Context, event events.Event) error {
	if n.webhook == nil {
		return nil
	}
	resp, err := n.webhook.R().
		SetContext(ctx).
		SetBody(event).
		Post(n.cfg.WebhookURL)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return nil
	}
	if resp.IsError() {
		n.logger.Warn("webhook rejected event",
			zap.String("event_type", string(event.Type)),
			zap.Int("status", resp.StatusCode()))
	}
	return nil
}
