package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/access"
	"github.com/spec-kit/triage-service/internal/domain"
)

func TestBuildTicketListAppliesScopeAndFilters(t *testing.T) {
	category := domain.CategoryBilling
	status := domain.StatusOpen
	filter := TicketFilter{Category: &category, Status: &status, Limit: 20, Offset: 40}

	query, args, err := buildTicketList(filter, access.ForDepartment(domain.DepartmentFinance)).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "FROM tickets WHERE department = $1 AND category = $2 AND status = $3")
	assert.Contains(t, query, "ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 40")
	assert.Equal(t, []any{"Finance", "Billing", "Open"}, args)
}

func TestBuildTicketListUnrestricted(t *testing.T) {
	before := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args, err := buildTicketList(TicketFilter{CreatedBefore: &before}, access.System()).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, query, "department =")
	assert.Contains(t, query, "WHERE created_at < $1")
	assert.NotContains(t, query, "LIMIT")
	assert.Equal(t, []any{before}, args)
}

func TestBuildTicketUpdateGuardsVersionAndScope(t *testing.T) {
	resolved := domain.StatusResolved
	now := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	patch := TicketPatch{Status: &resolved, ResolvedAt: &now}

	query, args, err := buildTicketUpdate("t-1", 7, patch, access.ForDepartment(domain.DepartmentDev)).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE tickets SET status = $1, resolved_at = $2, version = version + 1, updated_at = NOW() "+
			"WHERE id = $3 AND version = $4 AND department = $5",
		query)
	assert.Equal(t, []any{"Resolved", now, "t-1", int64(7), "Dev"}, args)
}

func TestBuildTicketUpdateClearsNullableColumns(t *testing.T) {
	open := domain.StatusInProgress
	patch := TicketPatch{Status: &open, ClearResolvedAt: true, ClearAssignedAgent: true}

	query, args, err := buildTicketUpdate("t-2", 1, patch, access.System()).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "assigned_agent = $2")
	assert.Contains(t, query, "resolved_at = $3")
	assert.NotContains(t, query, "department =")
	assert.Nil(t, args[1])
	assert.Nil(t, args[2])
}

func TestTicketPatchApply(t *testing.T) {
	agent := "dana"
	resolvedAt := time.Now()
	ticket := &domain.Ticket{Status: domain.StatusOpen, AssignedAgent: &agent, ResolvedAt: &resolvedAt}

	dept := domain.DepartmentSecurity
	TicketPatch{Department: &dept, ClearAssignedAgent: true, ClearResolvedAt: true}.Apply(ticket)

	require.NotNil(t, ticket.Department)
	assert.Equal(t, domain.DepartmentSecurity, *ticket.Department)
	assert.Nil(t, ticket.AssignedAgent)
	assert.Nil(t, ticket.ResolvedAt)
	assert.Equal(t, domain.StatusOpen, ticket.Status)

	// patch values are copied, not aliased
	dept = domain.DepartmentDev
	assert.Equal(t, domain.DepartmentSecurity, *ticket.Department)
}
