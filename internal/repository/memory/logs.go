package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// HistoryStore is an in-memory repository.TicketHistoryRepository.
type HistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.TicketHistory
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{entries: make(map[string][]domain.TicketHistory)}
}

var _ repository.TicketHistoryRepository = (*HistoryStore)(nil)

func (s *HistoryStore) Append(_ context.Context, entry *domain.TicketHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	s.entries[entry.TicketID] = append(s.entries[entry.TicketID], *entry)
	return nil
}

func (s *HistoryStore) ListByTicket(_ context.Context, ticketID string, limit int) ([]domain.TicketHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := append([]domain.TicketHistory{}, s.entries[ticketID]...)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// OutboxStore is an in-memory repository.OutboundMessageRepository.
type OutboxStore struct {
	mu       sync.RWMutex
	messages []domain.OutboundMessage
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

var _ repository.OutboundMessageRepository = (*OutboxStore)(nil)

func (s *OutboxStore) Record(_ context.Context, msg *domain.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	if msg.Status == "" {
		msg.Status = domain.DeliveryQueued
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *OutboxStore) ListByTicket(_ context.Context, ticketID string) ([]domain.OutboundMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.OutboundMessage{}
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			result = append(result, m)
		}
	}
	domain.SortOutbox(result)
	return result, nil
}

func (s *OutboxStore) ListQueued(_ context.Context, limit int) ([]domain.OutboundMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.OutboundMessage{}
	for _, m := range s.messages {
		if m.Status != domain.DeliveryQueued {
			continue
		}
		result = append(result, m)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *OutboxStore) MarkDelivery(_ context.Context, id string, status domain.DeliveryStatus, sentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Status = status
			s.messages[i].SentAt = sentAt
			return nil
		}
	}
	return repository.ErrNotFound
}

// ProfileStore is an in-memory repository.ProfileRepository.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.Profile)}
}

var _ repository.ProfileRepository = (*ProfileStore)(nil)

func (s *ProfileStore) Create(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.CreatedAt = time.Now()
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *ProfileStore) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *ProfileStore) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}
