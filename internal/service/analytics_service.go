package service

import (
	"context"
	"math"
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

const (
	unclassifiedKey = "Unclassified"
	unassignedKey   = "Unassigned"
)

// AnalyticsSummary aggregates the tickets visible to one caller.
type AnalyticsSummary struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByCategory         map[string]int `json:"by_category"`
	OpenByDepartment   map[string]int `json:"open_by_department"`
	Breached           int            `json:"sla_breached"`
	BreachRate         float64        `json:"sla_breach_rate"`
	AvgResolutionHours float64        `json:"avg_resolution_hours"`
	StuckClassifying   int            `json:"stuck_classifying"`
}

// AnalyticsService computes dashboard figures.
type AnalyticsService struct {
	tickets    repository.TicketRepository
	stuckAfter time.Duration
	now        func() time.Time
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(tickets repository.TicketRepository, stuckAfter time.Duration, now func() time.Time) *AnalyticsService {
	if now == nil {
		now = time.Now
	}
	return &AnalyticsService{tickets: tickets, stuckAfter: stuckAfter, now: now}
}

// Summary aggregates every ticket in the caller's scope.
func (s *AnalyticsService) Summary(ctx context.Context, profile *domain.Profile) (AnalyticsSummary, error) {
	scope, err := staffScope(profile)
	if err != nil {
		return AnalyticsSummary{}, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{}, scope)
	if err != nil {
		return AnalyticsSummary{}, mapRepoError(err)
	}
	return ComputeAnalytics(tickets, s.now(), s.stuckAfter), nil
}

// ComputeAnalytics is the pure aggregation behind Summary.
func ComputeAnalytics(tickets []domain.Ticket, now time.Time, stuckAfter time.Duration) AnalyticsSummary {
	sum := AnalyticsSummary{
		Total:            len(tickets),
		ByStatus:         make(map[string]int, len(domain.Statuses)),
		ByCategory:       make(map[string]int),
		OpenByDepartment: make(map[string]int),
	}
	for _, st := range domain.Statuses {
		sum.ByStatus[string(st)] = 0
	}

	var resolvedCount int
	var resolvedHours float64
	for i := range tickets {
		t := &tickets[i]
		sum.ByStatus[string(t.Status)]++

		category := unclassifiedKey
		if t.Category != nil {
			category = string(*t.Category)
		}
		sum.ByCategory[category]++

		if t.Status.IsTerminal() {
			resolvedCount++
			if t.ResolvedAt != nil {
				resolvedHours += t.ResolvedAt.Sub(t.CreatedAt).Hours()
			}
			continue
		}

		dept := unassignedKey
		if t.Department != nil {
			dept = string(*t.Department)
		}
		sum.OpenByDepartment[dept]++

		if domain.IsBreached(t, now) {
			sum.Breached++
		}
		if t.Status == domain.StatusClassifying && now.Sub(t.CreatedAt) > stuckAfter {
			sum.StuckClassifying++
		}
	}

	if resolvedCount > 0 {
		sum.AvgResolutionHours = round1(resolvedHours / float64(resolvedCount))
	}
	if sum.Total > 0 {
		sum.BreachRate = round1(float64(sum.Breached) / float64(sum.Total) * 100)
	}
	return sum
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
