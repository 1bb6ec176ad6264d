package domain

import (
	"math"
	"time"
)

// MaxSLAHours is the largest window that still fits in a time.Duration.
const MaxSLAHours = float64(math.MaxInt64) / float64(time.Hour)

// ClassificationResult is the raw output of the classification service.
type ClassificationResult struct {
	Category       string
	Urgency        string
	Department     string
	SuggestedReply string
	SLAHours       float64
}

// Classification is a validated ClassificationResult.
type Classification struct {
	Category       Category
	Urgency        Urgency
	Department     Department
	SuggestedReply string
	SLAHours       float64
}

// Validate checks every field against the closed enums. Nothing is partially accepted.
func (r ClassificationResult) Validate() (Classification, error) {
	category, err := ParseCategory(r.Category)
	if err != nil {
		return Classification{}, err
	}
	urgency, err := ParseUrgency(r.Urgency)
	if err != nil {
		return Classification{}, err
	}
	department, err := ParseDepartment(r.Department)
	if err != nil {
		return Classification{}, err
	}
	if math.IsNaN(r.SLAHours) || math.IsInf(r.SLAHours, 0) || r.SLAHours <= 0 {
		return Classification{}, &FieldError{Field: "slaHours", Reason: "must be a positive number"}
	}
	if r.SLAHours >= MaxSLAHours {
		return Classification{}, &FieldError{Field: "slaHours", Reason: "exceeds the maximum SLA window"}
	}
	return Classification{
		Category:       category,
		Urgency:        urgency,
		Department:     department,
		SuggestedReply: r.SuggestedReply,
		SLAHours:       r.SLAHours,
	}, nil
}

// DeadlineFrom anchors the SLA window at the time the result was received.
func (c Classification) DeadlineFrom(receivedAt time.Time) time.Time {
	return receivedAt.Add(HoursToDuration(c.SLAHours))
}
