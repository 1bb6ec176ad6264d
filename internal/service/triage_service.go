package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

const classificationAttempts = 3

// TriageService owns the ticket lifecycle from intake to resolution.
type TriageService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	runner     *ClassificationRunner
	validate   *validator.Validate
	now        func() time.Time
	logger     *zap.Logger
}

// TriageDependencies bundles collaborators for the triage service.
type TriageDependencies struct {
	Tickets    repository.TicketRepository
	History    repository.TicketHistoryRepository
	Dispatcher events.Dispatcher
	Classifier classifier.Client
	Runner     RunnerConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// IntakeInput is a customer submission.
type IntakeInput struct {
	Name           string   `json:"name" validate:"required"`
	Email          string   `json:"email" validate:"required,email"`
	Subject        string   `json:"subject" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	AttachmentURLs []string `json:"attachment_urls" validate:"omitempty,dive,http_url"`
}

// TransitionInput moves a ticket between statuses and optionally reassigns it.
// An empty AssignedAgent clears the assignment.
type TransitionInput struct {
	Status          string
	AssignedAgent   *string
	ExpectedVersion *int64
}

// ManualClassification is a staff correction of the triage fields.
type ManualClassification struct {
	Category   string
	Urgency    string
	Department string
}

// NewTriageService wires the service and its classification runner.
func NewTriageService(deps TriageDependencies) *TriageService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &TriageService{
		tickets:    deps.Tickets,
		history:    deps.History,
		dispatcher: deps.Dispatcher,
		validate:   validator.New(),
		now:        now,
		logger:     logger,
	}
	s.runner = newClassificationRunner(deps.Classifier, s, deps.Runner, now, logger, deps.Metrics)
	return s
}

// Runner exposes the classification runner for shutdown and tests.
func (s *TriageService) Runner() *ClassificationRunner {
	return s.runner
}

// Intake stores a new ticket and dispatches classification without waiting for it.
func (s *TriageService) Intake(ctx context.Context, input IntakeInput) (*domain.Ticket, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	urls := make([]string, 0, len(input.AttachmentURLs))
	for _, u := range input.AttachmentURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	input.AttachmentURLs = urls

	if err := s.validate.Struct(input); err != nil {
		return nil, fieldValidationError(err)
	}

	now := s.now()
	ticket := &domain.Ticket{
		RequesterName:  input.Name,
		RequesterEmail: input.Email,
		Subject:        input.Subject,
		Description:    input.Description,
		AttachmentURLs: input.AttachmentURLs,
		Status:         domain.StatusClassifying,
		SLADeadline:    now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      ticket.ID,
		ChangedByType: domain.ActorSystem,
		ChangeType:    domain.ChangeTypeCreated,
		NewValue:      map[string]any{"status": string(ticket.Status), "ticket_number": ticket.TicketNumber},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    systemActor(),
		Payload: events.TicketCreatedPayload{
			TicketNumber:   ticket.TicketNumber,
			RequesterName:  ticket.RequesterName,
			RequesterEmail: ticket.RequesterEmail,
			Subject:        ticket.Subject,
		},
	})

	s.runner.Dispatch(ticket.ID, ticket.Subject, ticket.Description)
	return ticket, nil
}

// ApplyClassification validates a classifier result and writes it onto the ticket.
// The SLA window starts at receivedAt.
func (s *TriageService) ApplyClassification(ctx context.Context, ticketID string, result domain.ClassificationResult, receivedAt time.Time) (*domain.Ticket, error) {
	classification, err := result.Validate()
	if err != nil {
		return nil, fieldValidationError(err)
	}
	return s.applyClassification(ctx, ticketID, classification, receivedAt, systemActor(), false)
}

func (s *TriageService) applyClassification(ctx context.Context, ticketID string, c domain.Classification, receivedAt time.Time, actor events.Actor, manual bool) (*domain.Ticket, error) {
	var lastErr error
	for attempt := 0; attempt < classificationAttempts; attempt++ {
		current, err := s.tickets.Get(ctx, ticketID, access.System())
		if err != nil {
			return nil, mapRepoError(err)
		}

		patch, opened := classificationPatch(current, c, receivedAt, manual)
		updated, err := s.tickets.Update(ctx, ticketID, current.Version, patch, access.System())
		if errors.Is(err, repository.ErrVersionConflict) {
			lastErr = err
			s.logger.Debug("classification write conflicted; retrying",
				zap.String("ticket_id", ticketID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, mapRepoError(err)
		}

		s.recordClassification(ctx, current, updated, actor, opened, manual)
		return updated, nil
	}
	return nil, mapRepoError(lastErr)
}

func classificationPatch(current *domain.Ticket, c domain.Classification, receivedAt time.Time, manual bool) (repository.TicketPatch, bool) {
	patch := repository.TicketPatch{
		Category:   &c.Category,
		Urgency:    &c.Urgency,
		Department: &c.Department,
	}
	opened := current.Status == domain.StatusClassifying
	// corrections on an already classified ticket keep the running SLA window
	if !manual || opened {
		deadline := c.DeadlineFrom(receivedAt)
		patch.SLADeadline = &deadline
	}
	if opened {
		status := domain.StatusOpen
		patch.Status = &status
	}
	if c.SuggestedReply != "" {
		if current.AISuggestedReply == "" {
			reply := c.SuggestedReply
			patch.AISuggestedReply = &reply
		}
		if !current.ReplyDraftEdited {
			draft := c.SuggestedReply
			patch.ReplyDraft = &draft
		}
	}
	return patch, opened
}

func (s *TriageService) recordClassification(ctx context.Context, before, after *domain.Ticket, actor events.Actor, opened, manual bool) {
	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      after.ID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.StaffID,
		ChangeType:    domain.ChangeTypeClassification,
		OldValue:      classificationValues(before),
		NewValue:      classificationValues(after),
	})
	if opened {
		s.recordHistory(ctx, &domain.TicketHistory{
			TicketID:      after.ID,
			ChangedByType: actor.Type,
			ChangedByID:   actor.StaffID,
			ChangeType:    domain.ChangeTypeStatus,
			OldValue:      map[string]any{"status": string(before.Status)},
			NewValue:      map[string]any{"status": string(after.Status)},
		})
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClassified,
		TicketID: after.ID,
		Actor:    actor,
		Payload: events.TicketClassifiedPayload{
			Category:    *after.Category,
			Urgency:     *after.Urgency,
			Department:  *after.Department,
			SLADeadline: after.SLADeadline,
			Opened:      opened,
			Manual:      manual,
		},
	})
}

// RecordClassificationFailure notes a timed out or failed classification. The ticket
// itself is left in Classifying.
func (s *TriageService) RecordClassificationFailure(ctx context.Context, ticketID string, outcome ClassificationOutcome, cause error) {
	payload := events.ClassificationFailedPayload{Outcome: string(outcome)}
	if cause != nil {
		payload.Error = cause.Error()
	}
	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: domain.ActorSystem,
		ChangeType:    domain.ChangeTypeClassificationFailed,
		NewValue:      map[string]any{"outcome": payload.Outcome, "error": payload.Error},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventClassificationFailed,
		TicketID: ticketID,
		Actor:    systemActor(),
		Payload:  payload,
	})
}

// TransitionStatus moves a ticket to any status. Resolution time is stamped on entry to a
// terminal status and cleared on exit.
func (s *TriageService) TransitionStatus(ctx context.Context, profile *domain.Profile, ticketID string, input TransitionInput) (*domain.Ticket, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	target, err := domain.ParseStatus(input.Status)
	if err != nil {
		return nil, fieldValidationError(err)
	}

	current, err := s.tickets.Get(ctx, ticketID, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != current.Version {
		return nil, mapRepoError(repository.ErrVersionConflict)
	}

	patch := repository.TicketPatch{Status: &target}
	switch {
	case target.IsTerminal():
		if !(current.Status == target && current.ResolvedAt != nil) {
			now := s.now()
			patch.ResolvedAt = &now
		}
	case current.ResolvedAt != nil:
		patch.ClearResolvedAt = true
	}

	assigneeChanged := false
	if input.AssignedAgent != nil {
		agent := strings.TrimSpace(*input.AssignedAgent)
		if agent == "" {
			patch.ClearAssignedAgent = true
			assigneeChanged = current.AssignedAgent != nil
		} else {
			patch.AssignedAgent = &agent
			assigneeChanged = current.AssignedAgent == nil || *current.AssignedAgent != agent
		}
	}

	updated, err := s.tickets.Update(ctx, ticketID, current.Version, patch, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}

	actor := staffActor(profile.ID)
	if current.Status != updated.Status {
		s.recordHistory(ctx, &domain.TicketHistory{
			TicketID:      updated.ID,
			ChangedByType: actor.Type,
			ChangedByID:   actor.StaffID,
			ChangeType:    domain.ChangeTypeStatus,
			OldValue:      map[string]any{"status": string(current.Status)},
			NewValue:      map[string]any{"status": string(updated.Status)},
		})
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			Actor:    actor,
			Payload:  events.TicketStatusChangedPayload{OldStatus: current.Status, NewStatus: updated.Status},
		})
	}
	if assigneeChanged {
		s.recordHistory(ctx, &domain.TicketHistory{
			TicketID:      updated.ID,
			ChangedByType: actor.Type,
			ChangedByID:   actor.StaffID,
			ChangeType:    domain.ChangeTypeAssignee,
			OldValue:      map[string]any{"assigned_agent": optionalString(current.AssignedAgent)},
			NewValue:      map[string]any{"assigned_agent": optionalString(updated.AssignedAgent)},
		})
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: updated.ID,
			Actor:    actor,
			Payload:  events.TicketAssignedPayload{AssignedAgent: updated.AssignedAgent},
		})
	}
	return updated, nil
}

// CorrectClassification lets staff override the triage fields. A ticket still in
// Classifying is opened with the default SLA window for the chosen urgency.
func (s *TriageService) CorrectClassification(ctx context.Context, profile *domain.Profile, ticketID string, input ManualClassification) (*domain.Ticket, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	urgency, err := domain.ParseUrgency(input.Urgency)
	if err != nil {
		return nil, fieldValidationError(err)
	}
	c, err := domain.ClassificationResult{
		Category:   input.Category,
		Urgency:    input.Urgency,
		Department: input.Department,
		SLAHours:   domain.SLAHoursForUrgency(urgency),
	}.Validate()
	if err != nil {
		return nil, fieldValidationError(err)
	}
	if _, err := s.tickets.Get(ctx, ticketID, scope); err != nil {
		return nil, mapRepoError(err)
	}
	return s.applyClassification(ctx, ticketID, c, s.now(), staffActor(profile.ID), true)
}

// UpdateReplyDraft stores the staff-edited reply. The original suggestion is kept.
func (s *TriageService) UpdateReplyDraft(ctx context.Context, profile *domain.Profile, ticketID, text string) (*domain.Ticket, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	current, err := s.tickets.Get(ctx, ticketID, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}
	edited := true
	updated, err := s.tickets.Update(ctx, ticketID, current.Version, repository.TicketPatch{
		ReplyDraft:       &text,
		ReplyDraftEdited: &edited,
	}, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}

	actor := staffActor(profile.ID)
	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      updated.ID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.StaffID,
		ChangeType:    domain.ChangeTypeReplyDraft,
		OldValue:      map[string]any{"reply_draft": current.ReplyDraft},
		NewValue:      map[string]any{"reply_draft": updated.ReplyDraft},
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventReplyDraftUpdated,
		TicketID: updated.ID,
		Actor:    actor,
	})
	return updated, nil
}

// RequestReclassification dispatches the classifier again for a ticket the caller can see.
func (s *TriageService) RequestReclassification(ctx context.Context, profile *domain.Profile, ticketID string) (<-chan TaskResult, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.Get(ctx, ticketID, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.runner.Dispatch(ticket.ID, ticket.Subject, ticket.Description), nil
}

// GetTicket returns a ticket visible to the caller.
func (s *TriageService) GetTicket(ctx context.Context, profile *domain.Profile, ticketID string) (*domain.Ticket, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.Get(ctx, ticketID, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return ticket, nil
}

// ListTickets lists tickets within the caller's scope.
func (s *TriageService) ListTickets(ctx context.Context, profile *domain.Profile, filter repository.TicketFilter) ([]domain.Ticket, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, filter, scope)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return tickets, nil
}

// ListHistory returns the audit trail of a ticket visible to the caller.
func (s *TriageService) ListHistory(ctx context.Context, profile *domain.Profile, ticketID string, limit int) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, profile, ticketID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// SweepStuck re-dispatches classification for tickets left in Classifying longer than olderThan.
func (s *TriageService) SweepStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	status := domain.StatusClassifying
	cutoff := s.now().Add(-olderThan)
	stuck, err := s.tickets.List(ctx, repository.TicketFilter{Status: &status, CreatedBefore: &cutoff}, access.System())
	if err != nil {
		return 0, mapRepoError(err)
	}
	for _, t := range stuck {
		s.runner.Dispatch(t.ID, t.Subject, t.Description)
	}
	return len(stuck), nil
}

func (s *TriageService) recordHistory(ctx context.Context, entry *domain.TicketHistory) {
	if s.history == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("history append failed",
			zap.String("ticket_id", entry.TicketID),
			zap.String("change_type", string(entry.ChangeType)),
			zap.Error(err))
	}
}

func (s *TriageService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func classificationValues(t *domain.Ticket) map[string]any {
	values := map[string]any{"sla_deadline": t.SLADeadline}
	if t.Category != nil {
		values["category"] = string(*t.Category)
	}
	if t.Urgency != nil {
		values["urgency"] = string(*t.Urgency)
	}
	if t.Department != nil {
		values["department"] = string(*t.Department)
	}
	return values
}

func optionalString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func systemActor() events.Actor {
	return events.Actor{Type: domain.ActorSystem}
}

func staffActor(staffID string) events.Actor {
	return events.Actor{Type: domain.ActorStaff, StaffID: &staffID}
}
