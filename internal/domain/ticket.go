package domain

import "time"

// Ticket is a customer submission plus its triage and lifecycle state.
type Ticket struct {
	ID           string
	TicketNumber string

	RequesterName  string
	RequesterEmail string
	Subject        string
	Description    string
	AttachmentURLs []string

	Category   *Category
	Urgency    *Urgency
	Department *Department

	// AISuggestedReply keeps the first suggestion verbatim. ReplyDraft is the staff copy.
	AISuggestedReply string
	ReplyDraft       string
	ReplyDraftEdited bool

	Status        Status
	AssignedAgent *string
	SLADeadline   time.Time
	ResolvedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
}

// IsBreached reports an unresolved ticket past its SLA deadline.
func IsBreached(t *Ticket, now time.Time) bool {
	if t == nil || t.Status.IsTerminal() {
		return false
	}
	return now.After(t.SLADeadline)
}

// IsClassified reports whether the ticket has left intake.
func (t *Ticket) IsClassified() bool {
	return t.Category != nil && t.Urgency != nil && t.Department != nil
}

// SLAHoursForUrgency is the default window used when the classifier omits one.
func SLAHoursForUrgency(u Urgency) float64 {
	switch u {
	case UrgencyHigh:
		return 4
	case UrgencyMedium:
		return 24
	default:
		return 48
	}
}

// HoursToDuration converts fractional SLA hours.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
