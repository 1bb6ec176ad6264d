package domain

import (
	"fmt"
	"strings"
)

// Category is the triage category assigned by classification.
type Category string

const (
	CategoryBilling        Category = "Billing"
	CategoryBug            Category = "Bug"
	CategoryFeatureRequest Category = "Feature Request"
	CategoryAbuseReport    Category = "Abuse Report"
	CategoryGeneralInquiry Category = "General Inquiry"
)

// Urgency drives the default SLA window.
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

// Department owns a ticket and bounds which staff may see it.
type Department string

const (
	DepartmentFinance  Department = "Finance"
	DepartmentDev      Department = "Dev"
	DepartmentProduct  Department = "Product"
	DepartmentSecurity Department = "Security"
	DepartmentSupport  Department = "Support"

	// DepartmentAll is only valid on staff profiles.
	DepartmentAll Department = "All Departments"
)

// Status is the ticket lifecycle state.
type Status string

const (
	StatusClassifying Status = "Classifying"
	StatusOpen        Status = "Open"
	StatusInProgress  Status = "In Progress"
	StatusResolved    Status = "Resolved"
	StatusClosed      Status = "Closed"
)

var (
	Categories  = []Category{CategoryBilling, CategoryBug, CategoryFeatureRequest, CategoryAbuseReport, CategoryGeneralInquiry}
	Urgencies   = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}
	Departments = []Department{DepartmentFinance, DepartmentDev, DepartmentProduct, DepartmentSecurity, DepartmentSupport}
	Statuses    = []Status{StatusClassifying, StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalidEnum(field, value string) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf("unsupported value %q", value)}
}

func ParseCategory(v string) (Category, error) {
	for _, c := range Categories {
		if string(c) == strings.TrimSpace(v) {
			return c, nil
		}
	}
	return "", invalidEnum("category", v)
}

func ParseUrgency(v string) (Urgency, error) {
	for _, u := range Urgencies {
		if string(u) == strings.TrimSpace(v) {
			return u, nil
		}
	}
	return "", invalidEnum("urgency", v)
}

// ParseDepartment accepts only departments a ticket can belong to.
func ParseDepartment(v string) (Department, error) {
	for _, d := range Departments {
		if string(d) == strings.TrimSpace(v) {
			return d, nil
		}
	}
	return "", invalidEnum("department", v)
}

// ParseProfileDepartment also accepts the All Departments wildcard.
func ParseProfileDepartment(v string) (Department, error) {
	if strings.TrimSpace(v) == string(DepartmentAll) {
		return DepartmentAll, nil
	}
	return ParseDepartment(v)
}

func ParseStatus(v string) (Status, error) {
	for _, s := range Statuses {
		if string(s) == strings.TrimSpace(v) {
			return s, nil
		}
	}
	return "", invalidEnum("status", v)
}

// IsTerminal reports whether the status counts as resolved for SLA purposes.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}
