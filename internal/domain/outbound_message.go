package domain

import (
	"sort"
	"time"
)

// MessageChannel says who originated an outbound message.
type MessageChannel string

const (
	ChannelAck           MessageChannel = "ack"
	ChannelExternalEmail MessageChannel = "external_email"
)

// DeliveryStatus tracks what happened to an outbound message after it was logged.
type DeliveryStatus string

const (
	DeliveryQueued DeliveryStatus = "queued"
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// OutboundMessage is one append-only outbox entry. Only Status and SentAt change after insert.
type OutboundMessage struct {
	ID             string
	TicketID       string
	ToEmail        string
	FromDepartment *Department
	Subject        string
	BodyText       string
	Channel        MessageChannel
	Status         DeliveryStatus
	SentAt         *time.Time
	CreatedAt      time.Time
}

// SortOutbox orders messages by sent_at ascending with unsent entries first.
func SortOutbox(msgs []OutboundMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		switch {
		case a.SentAt == nil && b.SentAt != nil:
			return true
		case a.SentAt != nil && b.SentAt == nil:
			return false
		case a.SentAt != nil && b.SentAt != nil && !a.SentAt.Equal(*b.SentAt):
			return a.SentAt.Before(*b.SentAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
