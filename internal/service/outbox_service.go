package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/outbox"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// OutboxService appends outbound customer messages and fans them out to subscribers.
type OutboxService struct {
	tickets    repository.TicketRepository
	messages   repository.OutboundMessageRepository
	broker     outbox.Broker
	dispatcher events.Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// OutboxDependencies bundles collaborators for the outbox service.
type OutboxDependencies struct {
	Tickets    repository.TicketRepository
	Messages   repository.OutboundMessageRepository
	Broker     outbox.Broker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// AgentReplyInput is a staff reply to the requester.
type AgentReplyInput struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewOutboxService constructs the service.
func NewOutboxService(deps OutboxDependencies) *OutboxService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &OutboxService{
		tickets:    deps.Tickets,
		messages:   deps.Messages,
		broker:     deps.Broker,
		dispatcher: deps.Dispatcher,
		now:        now,
		logger:     logger,
	}
}

// RecordAcknowledgement logs the automatic receipt sent to the requester of a new ticket.
func (s *OutboxService) RecordAcknowledgement(ctx context.Context, ticket *domain.Ticket) (*domain.OutboundMessage, error) {
	msg := &domain.OutboundMessage{
		TicketID: ticket.ID,
		ToEmail:  ticket.RequesterEmail,
		Subject:  fmt.Sprintf("[%s] We received your request: %s", ticket.TicketNumber, ticket.Subject),
		BodyText: fmt.Sprintf("Hi %s,\n\nThanks for contacting us. Your request %s has been received and is being routed to the right team.\n\nReference: %s",
			ticket.RequesterName, ticket.Subject, ticket.TicketNumber),
		Channel: domain.ChannelAck,
	}
	if err := s.append(ctx, msg, systemActor()); err != nil {
		return nil, err
	}
	return msg, nil
}

// RecordAgentReply logs a staff reply addressed to the ticket's requester.
func (s *OutboxService) RecordAgentReply(ctx context.Context, profile *domain.Profile, ticketID string, input AgentReplyInput) (*domain.OutboundMessage, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("reply body is required", map[string]any{"field": "body", "reason": "required"})
	}
	ticket, err := s.tickets.Get(ctx, ticketID, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}

	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Re: [%s] %s", ticket.TicketNumber, ticket.Subject)
	}
	msg := &domain.OutboundMessage{
		TicketID:       ticket.ID,
		ToEmail:        ticket.RequesterEmail,
		FromDepartment: ticket.Department,
		Subject:        subject,
		BodyText:       body,
		Channel:        domain.ChannelExternalEmail,
	}
	if err := s.append(ctx, msg, staffActor(profile.ID)); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListForStaff returns the outbox of a ticket visible to the caller.
func (s *OutboxService) ListForStaff(ctx context.Context, profile *domain.Profile, ticketID string) ([]domain.OutboundMessage, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	if _, err := s.tickets.Get(ctx, ticketID, scope); err != nil {
		return nil, mapRepoError(err)
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// Subscribe streams messages appended to a ticket visible to the caller.
func (s *OutboxService) Subscribe(ctx context.Context, profile *domain.Profile, ticketID string) (<-chan domain.OutboundMessage, func(), error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.tickets.Get(ctx, ticketID, scope); err != nil {
		return nil, nil, mapRepoError(err)
	}
	ch, cancel, err := s.broker.Subscribe(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return ch, cancel, nil
}

func (s *OutboxService) append(ctx context.Context, msg *domain.OutboundMessage, actor events.Actor) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if err := s.messages.Record(ctx, msg); err != nil {
		return apperrors.MapError(err)
	}
	if s.broker != nil {
		if err := s.broker.Publish(ctx, *msg); err != nil {
			s.logger.Warn("outbox publish failed",
				zap.String("ticket_id", msg.TicketID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventOutboundMessageCreated,
			TicketID:  msg.TicketID,
			Actor:     actor,
			Timestamp: s.now(),
			Payload:   events.OutboundMessageCreatedPayload{MessageID: msg.ID, Channel: msg.Channel},
		})
	}
	return nil
}
