package dto

import (
	"time"

	"github.com/aarondl/null/v8"

	"github.com/spec-kit/triage-service/internal/domain"
)

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries an issued bearer token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileResponse is the public view of a staff profile.
type ProfileResponse struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Department  null.String `json:"department"`
}

// NewProfileResponse maps a profile without its password hash.
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Department:  nullEnum(p.Department),
	}
}
