// Package report renders spreadsheet exports of the ticket queue.
package report

import (
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/triage-service/internal/domain"
)

const (
	ticketsSheet = "Tickets"
	summarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04"
)

var ticketHeaders = []interface{}{
	"Ticket", "Created", "Requester", "Email", "Subject", "Category", "Urgency",
	"Department", "Status", "Assigned", "SLA Deadline", "Resolved", "Breached",
}

// Summary is the per-department rollup written to the second sheet.
type Summary struct {
	Department string
	Open       int
	Breached   int
	Resolved   int
}

// WriteSLAReport writes an xlsx workbook with one row per ticket and a department summary.
func WriteSLAReport(w io.Writer, tickets []domain.Ticket, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ticketsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(ticketsSheet, "A1", &ticketHeaders); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ticketsSheet, "A1", "M1", bold); err != nil {
		return err
	}

	for i := range tickets {
		row := ticketRow(&tickets[i], now)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ticketsSheet, cell, &row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(ticketsSheet, "B", "B", 18)
	_ = f.SetColWidth(ticketsSheet, "C", "D", 25)
	_ = f.SetColWidth(ticketsSheet, "E", "E", 40)
	_ = f.SetColWidth(ticketsSheet, "F", "L", 18)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	header := []interface{}{"Department", "Open", "Breached", "Resolved"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return err
	}
	_ = f.SetCellStyle(summarySheet, "A1", "D1", bold)
	for i, s := range Summarize(tickets, now) {
		row := []interface{}{s.Department, s.Open, s.Breached, s.Resolved}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 20)

	return f.Write(w)
}

// Summarize groups tickets by department in the fixed department order, with unrouted
// tickets last.
func Summarize(tickets []domain.Ticket, now time.Time) []Summary {
	byDept := make(map[string]*Summary)
	order := make([]string, 0, len(domain.Departments)+1)
	for _, d := range domain.Departments {
		order = append(order, string(d))
	}
	order = append(order, "Unassigned")
	for _, name := range order {
		byDept[name] = &Summary{Department: name}
	}

	for i := range tickets {
		t := &tickets[i]
		name := "Unassigned"
		if t.Department != nil {
			name = string(*t.Department)
		}
		s := byDept[name]
		if s == nil {
			continue
		}
		if t.Status.IsTerminal() {
			s.Resolved++
			continue
		}
		s.Open++
		if domain.IsBreached(t, now) {
			s.Breached++
		}
	}

	out := make([]Summary, 0, len(order))
	for _, name := range order {
		out = append(out, *byDept[name])
	}
	return out
}

func ticketRow(t *domain.Ticket, now time.Time) []interface{} {
	resolved := ""
	if t.ResolvedAt != nil {
		resolved = t.ResolvedAt.Format(timeLayout)
	}
	assigned := ""
	if t.AssignedAgent != nil {
		assigned = *t.AssignedAgent
	}
	breached := "no"
	if domain.IsBreached(t, now) {
		breached = "yes"
	}
	return []interface{}{
		t.TicketNumber,
		t.CreatedAt.Format(timeLayout),
		t.RequesterName,
		t.RequesterEmail,
		t.Subject,
		strOrEmpty(t.Category),
		strOrEmpty(t.Urgency),
		strOrEmpty(t.Department),
		string(t.Status),
		assigned,
		t.SLADeadline.Format(timeLayout),
		resolved,
		breached,
	}
}

func strOrEmpty[T ~string](v *T) string {
	if v == nil {
		return ""
	}
	return string(*v)
}
