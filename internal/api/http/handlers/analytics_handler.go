package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/report"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsHandler serves dashboard figures, report exports and counters.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	triage    *service.TriageService
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, triage *service.TriageService, metrics *observability.Metrics, now func() time.Time) *AnalyticsHandler {
	if now == nil {
		now = time.Now
	}
	return &AnalyticsHandler{analytics: analytics, triage: triage, metrics: metrics, now: now}
}

// Summary GET /staff/analytics.
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	summary, err := h.analytics.Summary(c.UserContext(), profile)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// SLAReport GET /staff/reports/sla.xlsx.
func (h *AnalyticsHandler) SLAReport(c *fiber.Ctx) error {
	profile, err := staffProfile(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	// exports are not paginated
	filter.Limit, filter.Offset = 0, 0
	tickets, err := h.triage.ListTickets(c.UserContext(), profile, filter)
	if err != nil {
		return err
	}

	now := h.now()
	var buf bytes.Buffer
	if err := report.WriteSLAReport(&buf, tickets, now); err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="sla-report-%s.xlsx"`, now.Format("20060102")))
	return c.Send(buf.Bytes())
}

// Metrics GET /metrics.
func (h *AnalyticsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
