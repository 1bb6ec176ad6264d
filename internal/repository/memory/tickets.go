// Package memory holds in-process repository implementations with the same
// semantics as the postgres ones.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// TicketStore is an in-memory repository.TicketRepository.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	order   map[string]int64
	seq     int64
	now     func() time.Time
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		tickets: make(map[string]*domain.Ticket),
		order:   make(map[string]int64),
		now:     time.Now,
	}
}

var _ repository.TicketRepository = (*TicketStore)(nil)

func (s *TicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	now := s.now()
	ticket.ID = uuid.NewString()
	ticket.TicketNumber = fmt.Sprintf("TCK-%06d", s.seq)
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.Version = 1
	// round-trip through the stored encoding like the SQL column does
	ticket.AttachmentURLs = domain.ParseAttachmentURLs(domain.EncodeAttachmentURLs(ticket.AttachmentURLs))
	s.tickets[ticket.ID] = cloneTicket(ticket)
	s.order[ticket.ID] = s.seq
	return nil
}

func (s *TicketStore) Get(_ context.Context, id string, scope access.Scope) (*domain.Ticket, error) {
	if scope.IsDenied() {
		return nil, repository.ErrAccessDenied
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, missFor(scope)
	}
	if !scope.Allows(ticket) {
		return nil, repository.ErrAccessDenied
	}
	return cloneTicket(ticket), nil
}

func (s *TicketStore) List(_ context.Context, filter repository.TicketFilter, scope access.Scope) ([]domain.Ticket, error) {
	if scope.IsDenied() {
		return nil, repository.ErrAccessDenied
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.Ticket{}
	for _, ticket := range s.tickets {
		if !scope.Allows(ticket) || !matches(ticket, filter) {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return s.order[result[i].ID] > s.order[result[j].ID]
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Ticket{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *TicketStore) Update(_ context.Context, id string, expectedVersion int64, patch repository.TicketPatch, scope access.Scope) (*domain.Ticket, error) {
	if scope.IsDenied() {
		return nil, repository.ErrAccessDenied
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, missFor(scope)
	}
	if !scope.Allows(ticket) {
		return nil, repository.ErrAccessDenied
	}
	if ticket.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	next := cloneTicket(ticket)
	patch.Apply(next)
	next.Version++
	next.UpdatedAt = s.now()
	s.tickets[id] = next
	return cloneTicket(next), nil
}

func matches(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.Category != nil && (t.Category == nil || *t.Category != *f.Category) {
		return false
	}
	if f.Urgency != nil && (t.Urgency == nil || *t.Urgency != *f.Urgency) {
		return false
	}
	if f.Department != nil && (t.Department == nil || *t.Department != *f.Department) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func missFor(scope access.Scope) error {
	if scope.Unrestricted() {
		return repository.ErrNotFound
	}
	return repository.ErrAccessDenied
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	c.AttachmentURLs = append([]string(nil), t.AttachmentURLs...)
	if c.AttachmentURLs == nil {
		c.AttachmentURLs = []string{}
	}
	if t.Category != nil {
		v := *t.Category
		c.Category = &v
	}
	if t.Urgency != nil {
		v := *t.Urgency
		c.Urgency = &v
	}
	if t.Department != nil {
		v := *t.Department
		c.Department = &v
	}
	if t.AssignedAgent != nil {
		v := *t.AssignedAgent
		c.AssignedAgent = &v
	}
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		c.ResolvedAt = &v
	}
	return &c
}
