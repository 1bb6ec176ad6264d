package worker

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Mailer hands an outbound message to an email provider.
type Mailer interface {
	Send(ctx context.Context, msg domain.OutboundMessage) error
}

// LogMailer only logs messages. It is used when no provider key is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.logger.Info("outbound message",
		zap.String("message_id", msg.ID),
		zap.String("ticket_id", msg.TicketID),
		zap.String("to", msg.ToEmail),
		zap.String("channel", string(msg.Channel)),
		zap.String("subject", msg.Subject))
	return nil
}

// SendGridMailer delivers through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   string
}

func NewSendGridMailer(apiKey, from string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), from: from}
}

func (m *SendGridMailer) Send(ctx context.Context, msg domain.OutboundMessage) error {
	fromName := "Support"
	if msg.FromDepartment != nil {
		fromName = string(*msg.FromDepartment) + " Support"
	}
	email := mail.NewSingleEmail(
		mail.NewEmail(fromName, m.from),
		msg.Subject,
		mail.NewEmail("", msg.ToEmail),
		msg.BodyText,
		"",
	)
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
