package domain

import "time"

// ActorType identifies who made a change.
type ActorType string

const (
	ActorSystem ActorType = "SYSTEM"
	ActorStaff  ActorType = "STAFF"
)

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated              TicketChangeType = "CREATED"
	ChangeTypeStatus               TicketChangeType = "STATUS_CHANGE"
	ChangeTypeClassification       TicketChangeType = "CLASSIFICATION"
	ChangeTypeClassificationFailed TicketChangeType = "CLASSIFICATION_FAILED"
	ChangeTypeAssignee             TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeReplyDraft           TicketChangeType = "REPLY_DRAFT"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType ActorType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
