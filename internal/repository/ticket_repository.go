package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/domain"
)

const ticketTable = "tickets"

const ticketColumns = `id, ticket_number, name, email, subject, description, attachment_url,
    category, urgency, department, ai_suggested_reply, reply_draft, reply_draft_edited,
    status, assigned_agent, sla_deadline, resolved_at, created_at, updated_at, version`

// TicketFilter captures equality filters for listing. Limit <= 0 means no limit.
type TicketFilter struct {
	Category      *domain.Category
	Urgency       *domain.Urgency
	Department    *domain.Department
	Status        *domain.Status
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// TicketPatch lists the fields an update writes. Nil fields are left untouched.
type TicketPatch struct {
	Category           *domain.Category
	Urgency            *domain.Urgency
	Department         *domain.Department
	AISuggestedReply   *string
	ReplyDraft         *string
	ReplyDraftEdited   *bool
	Status             *domain.Status
	AssignedAgent      *string
	ClearAssignedAgent bool
	SLADeadline        *time.Time
	ResolvedAt         *time.Time
	ClearResolvedAt    bool
}

// Apply writes the patch onto t in place.
func (p TicketPatch) Apply(t *domain.Ticket) {
	if p.Category != nil {
		v := *p.Category
		t.Category = &v
	}
	if p.Urgency != nil {
		v := *p.Urgency
		t.Urgency = &v
	}
	if p.Department != nil {
		v := *p.Department
		t.Department = &v
	}
	if p.AISuggestedReply != nil {
		t.AISuggestedReply = *p.AISuggestedReply
	}
	if p.ReplyDraft != nil {
		t.ReplyDraft = *p.ReplyDraft
	}
	if p.ReplyDraftEdited != nil {
		t.ReplyDraftEdited = *p.ReplyDraftEdited
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ClearAssignedAgent {
		t.AssignedAgent = nil
	} else if p.AssignedAgent != nil {
		v := *p.AssignedAgent
		t.AssignedAgent = &v
	}
	if p.SLADeadline != nil {
		t.SLADeadline = *p.SLADeadline
	}
	if p.ClearResolvedAt {
		t.ResolvedAt = nil
	} else if p.ResolvedAt != nil {
		v := *p.ResolvedAt
		t.ResolvedAt = &v
	}
}

// TicketRepository encapsulates ticket persistence. Every call is bounded by a scope.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, id string, scope access.Scope) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter, scope access.Scope) ([]domain.Ticket, error)
	Update(ctx context.Context, id string, expectedVersion int64, patch TicketPatch, scope access.Scope) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (name, email, subject, description, attachment_url, status, sla_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, ticket_number, created_at, updated_at, version`
	return r.pool.QueryRow(ctx, query,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.Subject,
		ticket.Description,
		domain.EncodeAttachmentURLs(ticket.AttachmentURLs),
		string(ticket.Status),
		ticket.SLADeadline,
	).Scan(&ticket.ID, &ticket.TicketNumber, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Version)
}

func (r *ticketRepository) Get(ctx context.Context, id string, scope access.Scope) (*domain.Ticket, error) {
	if scope.IsDenied() {
		return nil, ErrAccessDenied
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, missFor(scope)
	}
	query, args, err := buildTicketGet(id, scope).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ticket get: %w", err)
	}
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missFor(scope)
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter, scope access.Scope) ([]domain.Ticket, error) {
	if scope.IsDenied() {
		return nil, ErrAccessDenied
	}
	query, args, err := buildTicketList(filter, scope).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ticket list: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Update(ctx context.Context, id string, expectedVersion int64, patch TicketPatch, scope access.Scope) (*domain.Ticket, error) {
	if scope.IsDenied() {
		return nil, ErrAccessDenied
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, missFor(scope)
	}
	query, args, err := buildTicketUpdate(id, expectedVersion, patch, scope).
		Suffix("RETURNING " + ticketColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ticket update: %w", err)
	}
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, id, scope)
	}
	return ticket, err
}

// explainMiss tells apart the reasons a guarded UPDATE touched no row.
func (r *ticketRepository) explainMiss(ctx context.Context, id string, scope access.Scope) error {
	var department *domain.Department
	err := r.pool.QueryRow(ctx, `SELECT department FROM tickets WHERE id=$1`, id).Scan(&department)
	if errors.Is(err, pgx.ErrNoRows) {
		return missFor(scope)
	}
	if err != nil {
		return err
	}
	if !scope.Allows(&domain.Ticket{Department: department}) {
		return ErrAccessDenied
	}
	return ErrVersionConflict
}

// missFor hides whether a ticket exists from department-restricted scopes.
func missFor(scope access.Scope) error {
	if scope.Unrestricted() {
		return ErrNotFound
	}
	return ErrAccessDenied
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func scopeClause(scope access.Scope) sq.Sqlizer {
	if d, ok := scope.Department(); ok {
		return sq.Eq{"department": string(d)}
	}
	return nil
}

func buildTicketGet(id string, scope access.Scope) sq.SelectBuilder {
	q := psql().Select(ticketColumns).From(ticketTable).Where(sq.Eq{"id": id})
	if clause := scopeClause(scope); clause != nil {
		q = q.Where(clause)
	}
	return q
}

func buildTicketList(filter TicketFilter, scope access.Scope) sq.SelectBuilder {
	q := psql().Select(ticketColumns).From(ticketTable)
	if clause := scopeClause(scope); clause != nil {
		q = q.Where(clause)
	}
	if filter.Category != nil {
		q = q.Where(sq.Eq{"category": string(*filter.Category)})
	}
	if filter.Urgency != nil {
		q = q.Where(sq.Eq{"urgency": string(*filter.Urgency)})
	}
	if filter.Department != nil {
		q = q.Where(sq.Eq{"department": string(*filter.Department)})
	}
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.CreatedBefore != nil {
		q = q.Where(sq.Lt{"created_at": *filter.CreatedBefore})
	}
	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

func buildTicketUpdate(id string, expectedVersion int64, p TicketPatch, scope access.Scope) sq.UpdateBuilder {
	q := psql().Update(ticketTable)
	if p.Category != nil {
		q = q.Set("category", string(*p.Category))
	}
	if p.Urgency != nil {
		q = q.Set("urgency", string(*p.Urgency))
	}
	if p.Department != nil {
		q = q.Set("department", string(*p.Department))
	}
	if p.AISuggestedReply != nil {
		q = q.Set("ai_suggested_reply", *p.AISuggestedReply)
	}
	if p.ReplyDraft != nil {
		q = q.Set("reply_draft", *p.ReplyDraft)
	}
	if p.ReplyDraftEdited != nil {
		q = q.Set("reply_draft_edited", *p.ReplyDraftEdited)
	}
	if p.Status != nil {
		q = q.Set("status", string(*p.Status))
	}
	if p.ClearAssignedAgent {
		q = q.Set("assigned_agent", nil)
	} else if p.AssignedAgent != nil {
		q = q.Set("assigned_agent", *p.AssignedAgent)
	}
	if p.SLADeadline != nil {
		q = q.Set("sla_deadline", *p.SLADeadline)
	}
	if p.ClearResolvedAt {
		q = q.Set("resolved_at", nil)
	} else if p.ResolvedAt != nil {
		q = q.Set("resolved_at", *p.ResolvedAt)
	}
	q = q.Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "version": expectedVersion})
	if clause := scopeClause(scope); clause != nil {
		q = q.Where(clause)
	}
	return q
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		attachments *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.Subject,
		&ticket.Description,
		&attachments,
		&ticket.Category,
		&ticket.Urgency,
		&ticket.Department,
		&ticket.AISuggestedReply,
		&ticket.ReplyDraft,
		&ticket.ReplyDraftEdited,
		&ticket.Status,
		&ticket.AssignedAgent,
		&ticket.SLADeadline,
		&ticket.ResolvedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	ticket.AttachmentURLs = domain.ParseAttachmentURLs(attachments)
	return &ticket, nil
}
