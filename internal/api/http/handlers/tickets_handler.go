package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// ClassifierTokenHeader authenticates classification callbacks.
const ClassifierTokenHeader = "X-Classifier-Token"

// TicketsHandler serves public intake and the classifier callback.
type TicketsHandler struct {
	triage        *service.TriageService
	callbackToken string
	now           func() time.Time
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(triage *service.TriageService, callbackToken string, now func() time.Time) *TicketsHandler {
	if now == nil {
		now = time.Now
	}
	return &TicketsHandler{triage: triage, callbackToken: callbackToken, now: now}
}

// Submit POST /api/tickets.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	var req dto.IntakeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.triage.Intake(c.UserContext(), service.IntakeInput{
		Name:           req.Name,
		Email:          req.Email,
		Subject:        req.Subject,
		Description:    req.Description,
		AttachmentURLs: req.AttachmentURLs,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.IntakeResponse{
		ID:           ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
	}})
}

// ClassificationCallback POST /internal/classifications/:id.
func (h *TicketsHandler) ClassificationCallback(c *fiber.Ctx) error {
	if h.callbackToken == "" {
		return apperrors.NewForbidden("classification callback disabled")
	}
	got := c.Get(ClassifierTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) != 1 {
		return apperrors.NewUnauthorized("invalid classifier token")
	}
	var req dto.ClassificationCallback
	if err := parseBody(c, &req); err != nil {
		return err
	}
	receivedAt := h.now()
	ticket, err := h.triage.ApplyClassification(c.UserContext(), c.Params("id"), domain.ClassificationResult{
		Category:       req.Category,
		Urgency:        req.Urgency,
		Department:     req.Department,
		SuggestedReply: req.SuggestedReply,
		SLAHours:       req.SLAHours,
	}, receivedAt)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, receivedAt)})
}
