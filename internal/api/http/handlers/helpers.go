package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

func staffProfile(c *fiber.Ctx) (*domain.Profile, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return principal.Profile, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// parseTicketFilter reads equality filters and page/page_size from the query string.
func parseTicketFilter(c *fiber.Ctx) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{}
	if v := strings.TrimSpace(c.Query("category")); v != "" {
		category, err := domain.ParseCategory(v)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "category"})
		}
		filter.Category = &category
	}
	if v := strings.TrimSpace(c.Query("urgency")); v != "" {
		urgency, err := domain.ParseUrgency(v)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "urgency"})
		}
		filter.Urgency = &urgency
	}
	if v := strings.TrimSpace(c.Query("department")); v != "" {
		dept, err := domain.ParseDepartment(v)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "department"})
		}
		filter.Department = &dept
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status, err := domain.ParseStatus(v)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
		}
		filter.Status = &status
	}
	if before := parseTime(c.Query("created_before")); before != nil {
		filter.CreatedBefore = before
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
