package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBreached(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name     string
		status   Status
		deadline time.Time
		want     bool
	}{
		{"open past deadline", StatusOpen, past, true},
		{"open before deadline", StatusOpen, future, false},
		{"exactly at deadline", StatusInProgress, now, false},
		{"classifying past placeholder", StatusClassifying, past, true},
		{"resolved past deadline", StatusResolved, past, false},
		{"closed past deadline", StatusClosed, past, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticket := &Ticket{Status: tc.status, SLADeadline: tc.deadline}
			assert.Equal(t, tc.want, IsBreached(ticket, now))
		})
	}
	assert.False(t, IsBreached(nil, now))
}

func TestParseEnums(t *testing.T) {
	c, err := ParseCategory("Feature Request")
	require.NoError(t, err)
	assert.Equal(t, CategoryFeatureRequest, c)

	_, err = ParseCategory("billing")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "category", fe.Field)

	s, err := ParseStatus("In Progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = ParseDepartment("All Departments")
	assert.Error(t, err, "wildcard is not a ticket department")

	d, err := ParseProfileDepartment("All Departments")
	require.NoError(t, err)
	assert.Equal(t, DepartmentAll, d)
}

func TestClassificationValidate(t *testing.T) {
	valid := ClassificationResult{Category: "Billing", Urgency: "High", Department: "Finance", SLAHours: 4, SuggestedReply: "hi"}

	got, err := valid.Validate()
	require.NoError(t, err)
	assert.Equal(t, CategoryBilling, got.Category)
	assert.Equal(t, UrgencyHigh, got.Urgency)
	assert.Equal(t, DepartmentFinance, got.Department)

	received := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, received.Add(4*time.Hour), got.DeadlineFrom(received))

	half := valid
	half.SLAHours = 1.5
	hc, err := half.Validate()
	require.NoError(t, err)
	assert.Equal(t, received.Add(90*time.Minute), hc.DeadlineFrom(received))

	long := valid
	long.SLAHours = 1e6
	lc, err := long.Validate()
	require.NoError(t, err)
	deadline := lc.DeadlineFrom(received)
	assert.True(t, deadline.After(received))
	assert.False(t, IsBreached(&Ticket{Status: StatusOpen, SLADeadline: deadline}, received))

	bad := map[string]ClassificationResult{
		"zero hours":      {Category: "Billing", Urgency: "High", Department: "Finance", SLAHours: 0},
		"negative hours":  {Category: "Billing", Urgency: "High", Department: "Finance", SLAHours: -2},
		"nan hours":       {Category: "Billing", Urgency: "High", Department: "Finance", SLAHours: math.NaN()},
		"overflow hours":  {Category: "Billing", Urgency: "High", Department: "Finance", SLAHours: 1e7},
		"bad category":    {Category: "Refund", Urgency: "High", Department: "Finance", SLAHours: 4},
		"bad urgency":     {Category: "Billing", Urgency: "Urgent", Department: "Finance", SLAHours: 4},
		"wildcard dept":   {Category: "Billing", Urgency: "High", Department: "All Departments", SLAHours: 4},
		"missing urgency": {Category: "Billing", Department: "Finance", SLAHours: 4},
	}
	for name, r := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := r.Validate()
			assert.Error(t, err)
		})
	}
}

func TestSLAHoursForUrgency(t *testing.T) {
	assert.Equal(t, 4.0, SLAHoursForUrgency(UrgencyHigh))
	assert.Equal(t, 24.0, SLAHoursForUrgency(UrgencyMedium))
	assert.Equal(t, 48.0, SLAHoursForUrgency(UrgencyLow))
	assert.Equal(t, 48.0, SLAHoursForUrgency(""))
}

func TestAttachmentURLs(t *testing.T) {
	str := func(s string) *string { return &s }

	t.Run("json array round trip keeps order", func(t *testing.T) {
		urls := []string{"https://files/b.png", "https://files/a.pdf"}
		stored := EncodeAttachmentURLs(urls)
		require.NotNil(t, stored)
		assert.Equal(t, urls, ParseAttachmentURLs(stored))
	})

	t.Run("legacy single url", func(t *testing.T) {
		assert.Equal(t, []string{"https://files/x.png"}, ParseAttachmentURLs(str("https://files/x.png")))
	})

	t.Run("malformed json degrades to raw value", func(t *testing.T) {
		assert.Equal(t, []string{`["https://files/x.png"`}, ParseAttachmentURLs(str(`["https://files/x.png"`)))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, ParseAttachmentURLs(nil))
		assert.Empty(t, ParseAttachmentURLs(str("  ")))
		assert.Nil(t, EncodeAttachmentURLs(nil))
		assert.Nil(t, EncodeAttachmentURLs([]string{" "}))
	})
}

func TestSortOutbox(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := base.Add(d); return &v }

	msgs := []OutboundMessage{
		{ID: "sent-late", SentAt: at(2 * time.Hour), CreatedAt: base},
		{ID: "queued-b", CreatedAt: base.Add(time.Minute)},
		{ID: "sent-early", SentAt: at(time.Hour), CreatedAt: base.Add(time.Hour)},
		{ID: "queued-a", CreatedAt: base},
	}
	SortOutbox(msgs)

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"queued-a", "queued-b", "sent-early", "sent-late"}, ids)
}
