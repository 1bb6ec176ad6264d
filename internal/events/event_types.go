package events

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketClassified       EventType = "ticket_classified"
	EventClassificationFailed   EventType = "classification_failed"
	EventTicketStatusChanged    EventType = "ticket_status_changed"
	EventTicketAssigned         EventType = "ticket_assigned"
	EventReplyDraftUpdated      EventType = "reply_draft_updated"
	EventOutboundMessageCreated EventType = "outbound_message_created"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.ActorType `json:"type"`
	StaffID *string          `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber   string `json:"ticket_number"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	Subject        string `json:"subject"`
}

// TicketClassifiedPayload payload.
type TicketClassifiedPayload struct {
	Category    domain.Category   `json:"category"`
	Urgency     domain.Urgency    `json:"urgency"`
	Department  domain.Department `json:"department"`
	SLADeadline time.Time         `json:"sla_deadline"`
	Opened      bool              `json:"opened"`
	Manual      bool              `json:"manual"`
}

// ClassificationFailedPayload payload.
type ClassificationFailedPayload struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedAgent *string `json:"assigned_agent,omitempty"`
}

// OutboundMessageCreatedPayload payload.
type OutboundMessageCreatedPayload struct {
	MessageID string                `json:"message_id"`
	Channel   domain.MessageChannel `json:"channel"`
}
