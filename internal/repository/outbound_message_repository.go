package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// OutboundMessageRepository is the append-only outbox log.
type OutboundMessageRepository interface {
	Record(ctx context.Context, msg *domain.OutboundMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.OutboundMessage, error)
	ListQueued(ctx context.Context, limit int) ([]domain.OutboundMessage, error)
	MarkDelivery(ctx context.Context, id string, status domain.DeliveryStatus, sentAt *time.Time) error
}

const outboundColumns = `id, ticket_id, to_email, from_department, subject, body_text, channel, status, sent_at, created_at`

type outboundMessageRepository struct {
	pool *pgxpool.Pool
}

// NewOutboundMessageRepository builds the postgres outbox log.
func NewOutboundMessageRepository(pool *pgxpool.Pool) OutboundMessageRepository {
	return &outboundMessageRepository{pool: pool}
}

func (r *outboundMessageRepository) Record(ctx context.Context, msg *domain.OutboundMessage) error {
	const query = `
        INSERT INTO outgoing_messages (ticket_id, to_email, from_department, subject, body_text, channel, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	if msg.Status == "" {
		msg.Status = domain.DeliveryQueued
	}
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.ToEmail,
		msg.FromDepartment,
		msg.Subject,
		msg.BodyText,
		string(msg.Channel),
		string(msg.Status),
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *outboundMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.OutboundMessage, error) {
	const query = `SELECT ` + outboundColumns + `
        FROM outgoing_messages WHERE ticket_id=$1
        ORDER BY sent_at ASC NULLS FIRST, created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutbound(rows)
}

func (r *outboundMessageRepository) ListQueued(ctx context.Context, limit int) ([]domain.OutboundMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + outboundColumns + `
        FROM outgoing_messages WHERE status=$1
        ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, string(domain.DeliveryQueued), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutbound(rows)
}

func (r *outboundMessageRepository) MarkDelivery(ctx context.Context, id string, status domain.DeliveryStatus, sentAt *time.Time) error {
	const query = `UPDATE outgoing_messages SET status=$1, sent_at=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, string(status), sentAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOutbound(rows pgx.Rows) ([]domain.OutboundMessage, error) {
	result := []domain.OutboundMessage{}
	for rows.Next() {
		var msg domain.OutboundMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.ToEmail,
			&msg.FromDepartment,
			&msg.Subject,
			&msg.BodyText,
			&msg.Channel,
			&msg.Status,
			&msg.SentAt,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
