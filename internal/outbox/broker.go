// Package outbox fans newly recorded outbound messages out to per-ticket subscribers.
package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
)

const subscriberBuffer = 16

// Broker publishes outbox appends and lets consumers follow one ticket.
type Broker interface {
	Publish(ctx context.Context, msg domain.OutboundMessage) error
	// Subscribe delivers messages recorded for ticketID until cancel is called or ctx ends.
	Subscribe(ctx context.Context, ticketID string) (<-chan domain.OutboundMessage, func(), error)
}

// MemoryBroker fans out within the process.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan domain.OutboundMessage
	nextID int
	logger *zap.Logger
}

func NewMemoryBroker(logger *zap.Logger) *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]chan domain.OutboundMessage), logger: logger}
}

func (b *MemoryBroker) Publish(_ context.Context, msg domain.OutboundMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[msg.TicketID] {
		select {
		case ch <- msg:
		default:
			b.logger.Warn("outbox subscriber lagging; dropped message",
				zap.String("ticket_id", msg.TicketID), zap.String("message_id", msg.ID))
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, ticketID string) (<-chan domain.OutboundMessage, func(), error) {
	ch := make(chan domain.OutboundMessage, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[ticketID] == nil {
		b.subs[ticketID] = make(map[int]chan domain.OutboundMessage)
	}
	b.subs[ticketID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[ticketID], id)
			if len(b.subs[ticketID]) == 0 {
				delete(b.subs, ticketID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

// wireMessage is the JSON form carried over external transports.
type wireMessage struct {
	ID             string     `json:"id"`
	TicketID       string     `json:"ticket_id"`
	ToEmail        string     `json:"to_email"`
	FromDepartment *string    `json:"from_department,omitempty"`
	Subject        string     `json:"subject"`
	BodyText       string     `json:"body_text"`
	Channel        string     `json:"channel"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toWire(m domain.OutboundMessage) wireMessage {
	w := wireMessage{
		ID:        m.ID,
		TicketID:  m.TicketID,
		ToEmail:   m.ToEmail,
		Subject:   m.Subject,
		BodyText:  m.BodyText,
		Channel:   string(m.Channel),
		Status:    string(m.Status),
		SentAt:    m.SentAt,
		CreatedAt: m.CreatedAt,
	}
	if m.FromDepartment != nil {
		d := string(*m.FromDepartment)
		w.FromDepartment = &d
	}
	return w
}

func (w wireMessage) toDomain() domain.OutboundMessage {
	m := domain.OutboundMessage{
		ID:        w.ID,
		TicketID:  w.TicketID,
		ToEmail:   w.ToEmail,
		Subject:   w.Subject,
		BodyText:  w.BodyText,
		Channel:   domain.MessageChannel(w.Channel),
		Status:    domain.DeliveryStatus(w.Status),
		SentAt:    w.SentAt,
		CreatedAt: w.CreatedAt,
	}
	if w.FromDepartment != nil {
		d := domain.Department(*w.FromDepartment)
		m.FromDepartment = &d
	}
	return m
}
