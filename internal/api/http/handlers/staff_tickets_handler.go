package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/service"
)

const streamHeartbeat = 15 * time.Second

// StaffTicketsHandler serves the staff triage queue.
type StaffTicketsHandler struct {
	triage *service.TriageService
	outbox *service.OutboxService
	logger *zap.Logger
	now    func() time.Time
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(triage *service.TriageService, outbox *service.OutboxService, logger *zap.Logger, now func() time.Time) *StaffTicketsHandler {
	if now == nil {
		now = time.Now
	}
	return &StaffTicketsHandler{triage: triage, outbox: outbox, logger: logger, now: now}
}

// List GET /staff/tickets.
func (h *StaffTicketsHandler) List(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.triage.ListTickets(c.UserContext(), profile, filter)
	if err != nil {
		return err
	}
	now := h.now()
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i], now))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /staff/tickets/:id.
func (h *StaffTicketsHandler) Get(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	ticket, err := h.triage.GetTicket(c.UserContext(), profile, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, h.now())})
}

// TransitionStatus PATCH /staff/tickets/:id/status.
func (h *StaffTicketsHandler) TransitionStatus(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.triage.TransitionStatus(c.UserContext(), profile, c.Params("id"), service.TransitionInput{
		Status:          req.Status,
		AssignedAgent:   req.AssignedAgent,
		ExpectedVersion: req.ExpectedVersion.Ptr(),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, h.now())})
}

// CorrectClassification PUT /staff/tickets/:id/classification.
func (h *StaffTicketsHandler) CorrectClassification(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	var req dto.ClassificationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.triage.CorrectClassification(c.UserContext(), profile, c.Params("id"), service.ManualClassification{
		Category:   req.Category,
		Urgency:    req.Urgency,
		Department: req.Department,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, h.now())})
}

// Reclassify POST /staff/tickets/:id/reclassify. The classifier runs in the background.
func (h *StaffTicketsHandler) Reclassify(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	if _, err := h.triage.RequestReclassification(c.UserContext(), profile, c.Params("id")); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "dispatched"}})
}

// UpdateReplyDraft PUT /staff/tickets/:id/reply-draft.
func (h *StaffTicketsHandler) UpdateReplyDraft(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	var req dto.ReplyDraftRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.triage.UpdateReplyDraft(c.UserContext(), profile, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, h.now())})
}

// History GET /staff/tickets/:id/history.
func (h *StaffTicketsHandler) History(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	entries, err := h.triage.ListHistory(c.UserContext(), profile, c.Params("id"), parseInt(c.Query("limit"), 100))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewHistoryResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Reply POST /staff/tickets/:id/replies.
func (h *StaffTicketsHandler) Reply(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	var req dto.AgentReplyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.outbox.RecordAgentReply(c.UserContext(), profile, c.Params("id"), service.AgentReplyInput{
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewOutboundMessageResponse(*msg)})
}

// Messages GET /staff/tickets/:id/messages.
func (h *StaffTicketsHandler) Messages(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	msgs, err := h.outbox.ListForStaff(c.UserContext(), profile, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.OutboundMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, dto.NewOutboundMessageResponse(m))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stream GET /staff/tickets/:id/messages/stream as server-sent events.
func (h *StaffTicketsHandler) Stream(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	// the body writer runs after the handler returns, so the subscription cannot
	// borrow the request context
	ctx, cancel := context.WithCancel(context.Background())
	msgs, unsubscribe, err := h.outbox.Subscribe(ctx, profile, c.Params("id"))
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	ticketID := c.Params("id")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				payload, err := json.Marshal(dto.NewOutboundMessageResponse(msg))
				if err != nil {
					h.logger.Warn("stream encode failed", zap.String("ticket_id", ticketID), zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: message\nid: %s\ndata: %s\n\n", msg.ID, payload)
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				h.logger.Debug("stream client gone", zap.String("ticket_id", ticketID))
				return
			}
		}
	}))
	return nil
}
