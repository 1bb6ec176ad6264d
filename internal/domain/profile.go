package domain

import "time"

// Profile is a staff identity. Department may be a concrete department, the
// All Departments wildcard, or nil.
type Profile struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Department   *Department
	CreatedAt    time.Time
}
