package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository/memory"
)

func TestIntakeDoesNotWaitForWebhook(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event events.Event
		_ = json.NewDecoder(r.Body).Decode(&event)
		<-release
		mu.Lock()
		received = append(received, string(event.Type))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tickets := memory.NewTicketStore()
	msgs := memory.NewOutboxStore()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	outboxSvc := NewOutboxService(OutboxDependencies{Tickets: tickets, Messages: msgs, Dispatcher: dispatcher})
	notifications := NewNotificationService(dispatcher, tickets, outboxSvc, zap.NewNop(), config.NotificationConfig{WebhookURL: server.URL})
	notifications.RegisterHandlers()
	triage := NewTriageService(TriageDependencies{Tickets: tickets, History: memory.NewHistoryStore(), Dispatcher: dispatcher})
	defer triage.Runner().Close()

	done := make(chan string, 1)
	go func() {
		ticket, err := triage.Intake(context.Background(), IntakeInput{
			Name: "Dana", Email: "dana@example.com", Subject: "Billing dispute", Description: "Charged twice",
		})
		if err != nil {
			done <- ""
			return
		}
		done <- ticket.ID
	}()

	var id string
	select {
	case id = <-done:
		require.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("intake blocked on the webhook")
	}

	// the acknowledgement is written before intake returns
	acks, err := msgs.ListByTicket(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, acks, 1)

	close(release)
	notifications.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, received, string(events.EventTicketCreated))
}
