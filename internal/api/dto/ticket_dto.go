package dto

import (
	"time"

	"github.com/aarondl/null/v8"

	"github.com/spec-kit/triage-service/internal/domain"
)

// IntakeRequest is the public ticket submission payload.
type IntakeRequest struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Subject        string   `json:"subject"`
	Description    string   `json:"description"`
	AttachmentURLs []string `json:"attachment_urls"`
}

// IntakeResponse is deliberately small: the submitter only learns the reference.
type IntakeResponse struct {
	ID           string        `json:"id"`
	TicketNumber string        `json:"ticket_number"`
	Status       domain.Status `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// TransitionRequest moves a ticket. An absent assigned_agent leaves the assignment alone,
// an empty string clears it.
type TransitionRequest struct {
	Status          string     `json:"status"`
	AssignedAgent   *string    `json:"assigned_agent"`
	ExpectedVersion null.Int64 `json:"expected_version"`
}

// ClassificationRequest is a staff correction.
type ClassificationRequest struct {
	Category   string `json:"category"`
	Urgency    string `json:"urgency"`
	Department string `json:"department"`
}

// ClassificationCallback is the classifier's asynchronous result.
type ClassificationCallback struct {
	Category       string  `json:"category"`
	Urgency        string  `json:"urgency"`
	Department     string  `json:"department"`
	SuggestedReply string  `json:"suggestedReply"`
	SLAHours       float64 `json:"slaHours"`
}

// ReplyDraftRequest replaces the staff reply draft.
type ReplyDraftRequest struct {
	Text string `json:"text"`
}

// AgentReplyRequest sends a reply to the requester.
type AgentReplyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TicketResponse is the staff view of a ticket.
type TicketResponse struct {
	ID               string        `json:"id"`
	TicketNumber     string        `json:"ticket_number"`
	Name             string        `json:"name"`
	Email            string        `json:"email"`
	Subject          string        `json:"subject"`
	Description      string        `json:"description"`
	AttachmentURLs   []string      `json:"attachment_urls"`
	Category         null.String   `json:"category"`
	Urgency          null.String   `json:"urgency"`
	Department       null.String   `json:"department"`
	AISuggestedReply string        `json:"ai_suggested_reply"`
	ReplyDraft       string        `json:"reply_draft"`
	ReplyDraftEdited bool          `json:"reply_draft_edited"`
	Status           domain.Status `json:"status"`
	AssignedAgent    null.String   `json:"assigned_agent"`
	SLADeadline      time.Time     `json:"sla_deadline"`
	SLABreached      bool          `json:"sla_breached"`
	ResolvedAt       null.Time     `json:"resolved_at"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Version          int64         `json:"version"`
}

// NewTicketResponse maps a ticket, evaluating the breach flag at now.
func NewTicketResponse(t *domain.Ticket, now time.Time) TicketResponse {
	attachments := t.AttachmentURLs
	if attachments == nil {
		attachments = []string{}
	}
	return TicketResponse{
		ID:               t.ID,
		TicketNumber:     t.TicketNumber,
		Name:             t.RequesterName,
		Email:            t.RequesterEmail,
		Subject:          t.Subject,
		Description:      t.Description,
		AttachmentURLs:   attachments,
		Category:         nullEnum(t.Category),
		Urgency:          nullEnum(t.Urgency),
		Department:       nullEnum(t.Department),
		AISuggestedReply: t.AISuggestedReply,
		ReplyDraft:       t.ReplyDraft,
		ReplyDraftEdited: t.ReplyDraftEdited,
		Status:           t.Status,
		AssignedAgent:    null.StringFromPtr(t.AssignedAgent),
		SLADeadline:      t.SLADeadline,
		SLABreached:      domain.IsBreached(t, now),
		ResolvedAt:       null.TimeFromPtr(t.ResolvedAt),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		Version:          t.Version,
	}
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID            string         `json:"id"`
	ChangedByType string         `json:"changed_by_type"`
	ChangedByID   null.String    `json:"changed_by_id"`
	ChangeType    string         `json:"change_type"`
	OldValue      map[string]any `json:"old_value"`
	NewValue      map[string]any `json:"new_value"`
	CreatedAt     time.Time      `json:"created_at"`
}

func NewHistoryResponse(h domain.TicketHistory) HistoryResponse {
	return HistoryResponse{
		ID:            h.ID,
		ChangedByType: string(h.ChangedByType),
		ChangedByID:   null.StringFromPtr(h.ChangedByID),
		ChangeType:    string(h.ChangeType),
		OldValue:      h.OldValue,
		NewValue:      h.NewValue,
		CreatedAt:     h.CreatedAt,
	}
}

// OutboundMessageResponse is one outbox entry.
type OutboundMessageResponse struct {
	ID             string      `json:"id"`
	TicketID       string      `json:"ticket_id"`
	ToEmail        string      `json:"to_email"`
	FromDepartment null.String `json:"from_department"`
	Subject        string      `json:"subject"`
	BodyText       string      `json:"body_text"`
	Channel        string      `json:"channel"`
	Status         string      `json:"status"`
	SentAt         null.Time   `json:"sent_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

func NewOutboundMessageResponse(m domain.OutboundMessage) OutboundMessageResponse {
	return OutboundMessageResponse{
		ID:             m.ID,
		TicketID:       m.TicketID,
		ToEmail:        m.ToEmail,
		FromDepartment: nullEnum(m.FromDepartment),
		Subject:        m.Subject,
		BodyText:       m.BodyText,
		Channel:        string(m.Channel),
		Status:         string(m.Status),
		SentAt:         null.TimeFromPtr(m.SentAt),
		CreatedAt:      m.CreatedAt,
	}
}

func nullEnum[T ~string](v *T) null.String {
	if v == nil {
		return null.String{}
	}
	return null.StringFrom(string(*v))
}
