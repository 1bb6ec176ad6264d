package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/outbox"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/repository/memory"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

func notificationConfig() config.NotificationConfig {
	return config.NotificationConfig{EmailFrom: "support@example.com"}
}

func seedClassified(t *testing.T, store *memory.TicketStore, dept domain.Department) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		RequesterName:  "Dana",
		RequesterEmail: "dana@example.com",
		Subject:        "Billing dispute",
		Status:         domain.StatusClassifying,
	}
	require.NoError(t, store.Create(context.Background(), ticket))
	status := domain.StatusOpen
	updated, err := store.Update(context.Background(), ticket.ID, ticket.Version, repository.TicketPatch{
		Department: &dept,
		Status:     &status,
	}, access.System())
	require.NoError(t, err)
	return updated
}

func TestAgentReplyIsScopedAndPublished(t *testing.T) {
	store := memory.NewTicketStore()
	msgs := memory.NewOutboxStore()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	var created []events.Event
	dispatcher.Subscribe(events.EventOutboundMessageCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e)
		return nil
	})
	svc := NewOutboxService(OutboxDependencies{
		Tickets:    store,
		Messages:   msgs,
		Broker:     outbox.NewMemoryBroker(zap.NewNop()),
		Dispatcher: dispatcher,
	})
	ticket := seedClassified(t, store, domain.DepartmentFinance)
	finance := profileIn(domain.DepartmentFinance)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, stop, err := svc.Subscribe(ctx, finance, ticket.ID)
	require.NoError(t, err)
	defer stop()

	msg, err := svc.RecordAgentReply(context.Background(), finance, ticket.ID, AgentReplyInput{Body: "Refund issued."})
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelExternalEmail, msg.Channel)
	assert.Equal(t, domain.DeliveryQueued, msg.Status)
	assert.Equal(t, "dana@example.com", msg.ToEmail)
	assert.Equal(t, domain.DepartmentFinance, *msg.FromDepartment)
	assert.Contains(t, msg.Subject, ticket.TicketNumber)

	select {
	case got := <-stream:
		assert.Equal(t, msg.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the reply")
	}
	require.Len(t, created, 1)
	assert.Equal(t, ticket.ID, created[0].TicketID)

	list, err := svc.ListForStaff(context.Background(), finance, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	dev := profileIn(domain.DepartmentDev)
	_, err = svc.RecordAgentReply(context.Background(), dev, ticket.ID, AgentReplyInput{Body: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	_, err = svc.ListForStaff(context.Background(), dev, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	_, _, err = svc.Subscribe(context.Background(), dev, ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = svc.RecordAgentReply(context.Background(), finance, ticket.ID, AgentReplyInput{Body: "  "})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestAcknowledgementHasNoDepartment(t *testing.T) {
	store := memory.NewTicketStore()
	msgs := memory.NewOutboxStore()
	svc := NewOutboxService(OutboxDependencies{Tickets: store, Messages: msgs})

	ticket := &domain.Ticket{RequesterName: "Dana", RequesterEmail: "dana@example.com", Subject: "Help", Status: domain.StatusClassifying}
	require.NoError(t, store.Create(context.Background(), ticket))

	msg, err := svc.RecordAcknowledgement(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelAck, msg.Channel)
	assert.Nil(t, msg.FromDepartment)
	assert.Contains(t, msg.BodyText, ticket.TicketNumber)
}
