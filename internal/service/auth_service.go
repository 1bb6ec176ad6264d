package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

var errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")

// AuthService coordinates staff login.
type AuthService struct {
	profiles   repository.ProfileRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, profiles repository.ProfileRepository) *AuthService {
	return &AuthService{
		profiles:   profiles,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// LoginStaff authenticates a staff profile and issues a bearer token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.Profile, string, time.Time, error) {
	profile, err := s.profiles.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, errInvalidCredentials
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(profile.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errInvalidCredentials
	}

	var dept *string
	if profile.Department != nil {
		d := string(*profile.Department)
		dept = &d
	}
	token, exp, err := s.tokenMgr.GenerateToken(profile.ID, dept)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return profile, token, exp, nil
}

// CreateStaff provisions a staff profile with a hashed password.
func (s *AuthService) CreateStaff(ctx context.Context, name, email, password string, department *domain.Department) (*domain.Profile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	profile := &domain.Profile{
		DisplayName:  strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Department:   department,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// EnsureStaff creates the profile unless one with the same email exists.
func (s *AuthService) EnsureStaff(ctx context.Context, email, password string, department domain.Department) (*domain.Profile, bool, error) {
	existing, err := s.profiles.GetByEmail(ctx, strings.TrimSpace(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.MapError(err)
	}
	profile, err := s.CreateStaff(ctx, "Administrator", email, password, &department)
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}
