package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

type TicketStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *TicketStore
	clock time.Time
}

func TestTicketStore(t *testing.T) {
	suite.Run(t, new(TicketStoreSuite))
}

func (s *TicketStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewTicketStore()
	s.clock = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.store.now = func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}
}

func (s *TicketStoreSuite) create(dept *domain.Department) *domain.Ticket {
	t := &domain.Ticket{
		RequesterName:  "Ana",
		RequesterEmail: "ana@example.com",
		Subject:        "subject",
		Description:    "desc",
		Status:         domain.StatusClassifying,
		SLADeadline:    s.clock,
	}
	s.Require().NoError(s.store.Create(s.ctx, t))
	if dept != nil {
		updated, err := s.store.Update(s.ctx, t.ID, t.Version, repository.TicketPatch{Department: dept}, access.System())
		s.Require().NoError(err)
		return updated
	}
	return t
}

func deptPtr(d domain.Department) *domain.Department { return &d }

func (s *TicketStoreSuite) TestCreateAllocatesIdentity() {
	a := s.create(nil)
	b := s.create(nil)

	s.NotEmpty(a.ID)
	s.NotEqual(a.ID, b.ID)
	s.Equal("TCK-000001", a.TicketNumber)
	s.Equal("TCK-000002", b.TicketNumber)
	s.EqualValues(1, a.Version)
	s.Empty(a.AttachmentURLs)
}

func (s *TicketStoreSuite) TestListBreaksCreatedAtTiesByCreationOrder() {
	s.store.now = func() time.Time { return s.clock }
	s.store.seq = 999998

	first := s.create(nil)
	second := s.create(nil)
	third := s.create(nil)
	s.Equal("TCK-1000000", third.TicketNumber)

	list, err := s.store.List(s.ctx, repository.TicketFilter{}, access.System())
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal([]string{third.ID, second.ID, first.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func (s *TicketStoreSuite) TestScopedGet() {
	finance := s.create(deptPtr(domain.DepartmentFinance))
	unclassified := s.create(nil)

	_, err := s.store.Get(s.ctx, finance.ID, access.ForDepartment(domain.DepartmentFinance))
	s.NoError(err)

	_, err = s.store.Get(s.ctx, finance.ID, access.ForDepartment(domain.DepartmentDev))
	s.ErrorIs(err, repository.ErrAccessDenied)

	_, err = s.store.Get(s.ctx, unclassified.ID, access.ForDepartment(domain.DepartmentDev))
	s.ErrorIs(err, repository.ErrAccessDenied)

	_, err = s.store.Get(s.ctx, finance.ID, access.Denied())
	s.ErrorIs(err, repository.ErrAccessDenied)

	// restricted scopes cannot probe for existence
	_, err = s.store.Get(s.ctx, "missing", access.ForDepartment(domain.DepartmentDev))
	s.ErrorIs(err, repository.ErrAccessDenied)
	_, err = s.store.Get(s.ctx, "missing", access.System())
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *TicketStoreSuite) TestScopedListAndFilters() {
	f1 := s.create(deptPtr(domain.DepartmentFinance))
	s.create(deptPtr(domain.DepartmentDev))
	f2 := s.create(deptPtr(domain.DepartmentFinance))
	s.create(nil)

	got, err := s.store.List(s.ctx, repository.TicketFilter{}, access.ForDepartment(domain.DepartmentFinance))
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(f2.ID, got[0].ID, "newest first")
	s.Equal(f1.ID, got[1].ID)

	all, err := s.store.List(s.ctx, repository.TicketFilter{}, access.System())
	s.Require().NoError(err)
	s.Len(all, 4)

	classifying := domain.StatusClassifying
	pending, err := s.store.List(s.ctx, repository.TicketFilter{Status: &classifying}, access.System())
	s.Require().NoError(err)
	s.Len(pending, 1)

	page, err := s.store.List(s.ctx, repository.TicketFilter{Limit: 1, Offset: 1}, access.System())
	s.Require().NoError(err)
	s.Len(page, 1)

	_, err = s.store.List(s.ctx, repository.TicketFilter{}, access.Denied())
	s.ErrorIs(err, repository.ErrAccessDenied)
}

func (s *TicketStoreSuite) TestOptimisticUpdate() {
	t := s.create(deptPtr(domain.DepartmentSupport))
	scope := access.ForDepartment(domain.DepartmentSupport)
	status := domain.StatusInProgress

	updated, err := s.store.Update(s.ctx, t.ID, t.Version, repository.TicketPatch{Status: &status}, scope)
	s.Require().NoError(err)
	s.Equal(t.Version+1, updated.Version)
	s.Equal(domain.StatusInProgress, updated.Status)

	_, err = s.store.Update(s.ctx, t.ID, t.Version, repository.TicketPatch{Status: &status}, scope)
	s.ErrorIs(err, repository.ErrVersionConflict)

	_, err = s.store.Update(s.ctx, t.ID, updated.Version, repository.TicketPatch{Status: &status}, access.ForDepartment(domain.DepartmentDev))
	s.ErrorIs(err, repository.ErrAccessDenied)
}

func (s *TicketStoreSuite) TestReturnedTicketsAreCopies() {
	t := s.create(deptPtr(domain.DepartmentProduct))
	got, err := s.store.Get(s.ctx, t.ID, access.System())
	s.Require().NoError(err)

	*got.Department = domain.DepartmentDev
	again, err := s.store.Get(s.ctx, t.ID, access.System())
	s.Require().NoError(err)
	s.Equal(domain.DepartmentProduct, *again.Department)
}

func TestAttachmentOrderSurvivesStore(t *testing.T) {
	store := NewTicketStore()
	ticket := &domain.Ticket{AttachmentURLs: []string{"https://cdn/2.png", "https://cdn/1.png"}, Status: domain.StatusClassifying}
	require.NoError(t, store.Create(context.Background(), ticket))

	got, err := store.Get(context.Background(), ticket.ID, access.System())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/2.png", "https://cdn/1.png"}, got.AttachmentURLs)
}

func TestOutboxStore(t *testing.T) {
	ctx := context.Background()
	store := NewOutboxStore()

	first := &domain.OutboundMessage{TicketID: "t1", Channel: domain.ChannelAck}
	second := &domain.OutboundMessage{TicketID: "t1", Channel: domain.ChannelExternalEmail}
	other := &domain.OutboundMessage{TicketID: "t2", Channel: domain.ChannelAck}
	for _, m := range []*domain.OutboundMessage{first, second, other} {
		require.NoError(t, store.Record(ctx, m))
		assert.Equal(t, domain.DeliveryQueued, m.Status)
	}

	sentAt := time.Now()
	require.NoError(t, store.MarkDelivery(ctx, first.ID, domain.DeliverySent, &sentAt))
	assert.ErrorIs(t, store.MarkDelivery(ctx, "nope", domain.DeliverySent, &sentAt), repository.ErrNotFound)

	msgs, err := store.ListByTicket(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, second.ID, msgs[0].ID, "unsent entries sort first")
	assert.Equal(t, first.ID, msgs[1].ID)

	queued, err := store.ListQueued(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, queued, 2)
}

func TestProfileStoreLookup(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore()
	p := &domain.Profile{Email: "Lead@Example.com", Department: deptPtr(domain.DepartmentAll)}
	require.NoError(t, store.Create(ctx, p))

	byEmail, err := store.GetByEmail(ctx, "lead@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byEmail.ID)

	_, err = store.GetByID(ctx, "unknown")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
